package tests

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
	testutil "github.com/classmeasures/hub/tests"
)

func Test_studentAPI_studentQuery(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.users, "Jane Admin", "janeadmin", "jane@test.cm", "", []string{user.RoleAdmin}, true)
	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	pat := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	quinn := testutil.CreateUser(t, app.users, "Quinn Parent", "quinnparent", "quinn@test.cm", "", []string{user.RoleParent}, true)

	alice := testutil.CreateStudent(t, app.students, "Alice", 9, pat.ID)
	bob := testutil.CreateStudent(t, app.students, "Bob", 10, quinn.ID)

	want := func(students ...student.Student) []byte {
		return marchallObj(t, echo.Map{"success": true, "students": students})
	}

	tests := []httpTest{
		{name: "auth required", path: "/api/students", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "admin sees all", path: "/api/students", token: getToken(t, admin), wantCode: http.StatusOK, wantData: want(alice, bob)},
		{name: "tutor sees all", path: "/api/students", token: getToken(t, tutor), wantCode: http.StatusOK, wantData: want(alice, bob)},
		{name: "parent sees own children only", path: "/api/students", token: getToken(t, pat), wantCode: http.StatusOK, wantData: want(alice)},
		{name: "search", path: "/api/students?search=bob", token: getToken(t, admin), wantCode: http.StatusOK, wantData: want(bob)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentAPI_studentRetrieve(t *testing.T) {
	app := newTestApp(t)

	pat := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	quinn := testutil.CreateUser(t, app.users, "Quinn Parent", "quinnparent", "quinn@test.cm", "", []string{user.RoleParent}, true)
	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)

	alice := testutil.CreateStudent(t, app.students, "Alice", 9, pat.ID)

	tests := []httpTest{
		{
			name: "parent gets own child", path: "/api/students/" + alice.ID, token: getToken(t, pat),
			wantCode: http.StatusOK, wantData: marchallObj(t, echo.Map{"success": true, "student": alice}),
		},
		{
			name: "other parent gets not found", path: "/api/students/" + alice.ID, token: getToken(t, quinn),
			wantCode: http.StatusNotFound, wantData: jsonErr("not found"),
		},
		{
			name: "tutor gets any student", path: "/api/students/" + alice.ID, token: getToken(t, tutor),
			wantCode: http.StatusOK, wantData: marchallObj(t, echo.Map{"success": true, "student": alice}),
		},
		{
			name: "unknown id", path: "/api/students/5ff74db702aab3462be7b10a", token: getToken(t, tutor),
			wantCode: http.StatusNotFound, wantData: jsonErr("student not found"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentAPI_studentCreate(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.users, "Jane Admin", "janeadmin", "jane@test.cm", "", []string{user.RoleAdmin}, true)
	pat := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "admin required", token: getToken(t, pat),
			body:     marchallObj(t, student.NewStudent{Name: "Alice", Age: 9}),
			wantCode: http.StatusForbidden, wantData: jsonErr("permission denied"),
		},
		{
			name: "age out of range", token: adminToken,
			body:     marchallObj(t, student.NewStudent{Name: "Alice", Age: 3}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"success": false,
				"message": "validation failed",
				"errors":  echo.Map{"age": "age must be 4 or greater"},
			}),
		},
		{
			name: "unknown parent", token: adminToken,
			body:     marchallObj(t, student.NewStudent{Name: "Alice", Age: 9, ParentID: "5ff74db702aab3462be7b10a"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"success": false,
				"message": "parent reference does not resolve to an active parent user",
				"errors":  echo.Map{"parent_id": "parent reference does not resolve to an active parent user"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/students", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin creates student", func(t *testing.T) {
		body := marchallObj(t, student.NewStudent{Name: "Alice", Age: 9, ParentID: pat.ID})
		req, rec := newAuthRequest(http.MethodPost, "/api/students", adminToken, body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Student student.Student `json:"student"`
		}
		decodeBody(t, rec, &resp)
		if resp.Student.ID == "" || !resp.Student.IsActive {
			t.Errorf("unexpected student: %+v", resp.Student)
		}
		// statuses default when not provided
		if resp.Student.MembershipStatus != student.MembershipActive || resp.Student.PaymentStatus != student.PaymentPending {
			t.Errorf("unexpected statuses: %+v", resp.Student)
		}
	})
}

func Test_studentAPI_studentUpdate(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.users, "Jane Admin", "janeadmin", "jane@test.cm", "", []string{user.RoleAdmin}, true)
	pat := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	alice := testutil.CreateStudent(t, app.students, "Alice", 9, pat.ID)

	t.Run("admin required", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"payment_status": student.PaymentPaid})
		req, rec := newAuthRequest(http.MethodPut, "/api/students/"+alice.ID, getToken(t, pat), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: jsonErr("permission denied")}, rec)
	})

	t.Run("admin updates statuses", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"payment_status": student.PaymentPaid, "membership_status": student.MembershipExpired})
		req, rec := newAuthRequest(http.MethodPut, "/api/students/"+alice.ID, getToken(t, admin), body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Student student.Student `json:"student"`
		}
		decodeBody(t, rec, &resp)
		if resp.Student.PaymentStatus != student.PaymentPaid || resp.Student.MembershipStatus != student.MembershipExpired {
			t.Errorf("unexpected student: %+v", resp.Student)
		}
	})
}
