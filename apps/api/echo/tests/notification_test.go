package tests

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/user"
	testutil "github.com/classmeasures/hub/tests"
)

func Test_notificationAPI_notificationQuery(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	alice := testutil.CreateStudent(t, app.students, "Alice", 9, parent.ID)
	token := getToken(t, tutor)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/notifications", nil)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: errMissingToken}, rec)
	})

	t.Run("empty hub", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/notifications", token)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echo.Map{"success": true, "notifications": []notification.Event{}}),
		}, rec)
	})

	t.Run("enrollment events, newest first", func(t *testing.T) {
		for _, action := range []struct{ method, path string }{
			{http.MethodPost, "/api/programs/" + chess.ID + "/enroll"},
			{http.MethodDelete, "/api/programs/" + chess.ID + "/unenroll"},
		} {
			req, rec := newAuthRequest(action.method, action.path, token, marchallObj(t, echo.Map{"studentId": alice.ID}))
			app.server.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s failed: %s", action.path, rec.Body.String())
			}
		}

		req, rec := newAuthRequest(http.MethodGet, "/api/notifications", token)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Notifications []notification.Event `json:"notifications"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Notifications) != 2 {
			t.Fatalf("unexpected notifications: %+v", resp.Notifications)
		}
		if resp.Notifications[0].Type != notification.TypeUnenrollment ||
			resp.Notifications[1].Type != notification.TypeEnrollment {
			t.Errorf("unexpected order: %+v", resp.Notifications)
		}
		if resp.Notifications[1].Message != "Alice enrolled in Chess Club" {
			t.Errorf("message = %q", resp.Notifications[1].Message)
		}
	})
}
