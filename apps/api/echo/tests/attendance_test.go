package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/user"
	testutil "github.com/classmeasures/hub/tests"
)

func Test_attendanceAPI_attendanceMark(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	alice := testutil.CreateStudent(t, app.students, "Alice", 9, parent.ID)
	sess := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), []string{alice.ID})
	token := getToken(t, tutor)

	body := func(sessionID string, records ...attendance.Record) []byte {
		return marchallObj(t, attendance.MarkRequest{SessionID: sessionID, AttendanceData: records})
	}

	tests := []httpTest{
		{name: "auth required", body: body(sess.ID), wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{
			name: "tutor or admin required", token: getToken(t, parent),
			body:     body(sess.ID, attendance.Record{StudentID: alice.ID, Present: true}),
			wantCode: http.StatusForbidden, wantData: jsonErr("permission denied"),
		},
		{
			name: "unknown session", token: token,
			body:     body("5ff74db702aab3462be7b10a", attendance.Record{StudentID: alice.ID, Present: true}),
			wantCode: http.StatusNotFound, wantData: jsonErr("session not found"),
		},
		{
			name: "empty batch", token: token, body: body(sess.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"success": false,
				"message": "validation failed",
				"errors":  echo.Map{"attendanceData": "this field is required"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("tutor marks attendance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", token,
			body(sess.ID, attendance.Record{StudentID: alice.ID, Present: true, Notes: "on time"}))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Message string                    `json:"message"`
			Results []attendance.RecordResult `json:"results"`
		}
		decodeBody(t, rec, &resp)
		if resp.Message != "attendance marked" {
			t.Errorf("message = %q", resp.Message)
		}
		if len(resp.Results) != 1 || resp.Results[0].Status != attendance.OutcomeCreated {
			t.Errorf("unexpected results: %+v", resp.Results)
		}
	})

	t.Run("remark overwrites", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", token,
			body(sess.ID, attendance.Record{StudentID: alice.ID, Present: false, Notes: "left early"}))
		app.server.ServeHTTP(rec, req)

		var resp struct {
			Results []attendance.RecordResult `json:"results"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Results) != 1 || resp.Results[0].Status != attendance.OutcomeUpdated {
			t.Errorf("unexpected results: %+v", resp.Results)
		}
	})

	t.Run("partial failure reported per record", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", token,
			body(sess.ID,
				attendance.Record{StudentID: alice.ID, Present: true},
				attendance.Record{StudentID: "5ff74db702aab3462be7b10a", Present: true},
			))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Results []attendance.RecordResult `json:"results"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Results) != 2 {
			t.Fatalf("unexpected results: %+v", resp.Results)
		}
		if resp.Results[0].Status != attendance.OutcomeUpdated {
			t.Errorf("results[0] = %+v", resp.Results[0])
		}
		if resp.Results[1].Status != attendance.OutcomeFailed || resp.Results[1].Error == "" {
			t.Errorf("results[1] = %+v", resp.Results[1])
		}
	})
}

func Test_attendanceAPI_attendanceQuery(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	alice := testutil.CreateStudent(t, app.students, "Alice", 9, parent.ID)
	bob := testutil.CreateStudent(t, app.students, "Bob", 11, parent.ID)
	s1 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), []string{alice.ID, bob.ID})
	s2 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), []string{alice.ID, bob.ID})
	token := getToken(t, tutor)

	mark := func(sessionID string, records ...attendance.Record) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", token,
			marchallObj(t, attendance.MarkRequest{SessionID: sessionID, AttendanceData: records}))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("mark failed: %s", rec.Body.String())
		}
	}
	mark(s1.ID, attendance.Record{StudentID: alice.ID, Present: true}, attendance.Record{StudentID: bob.ID, Present: false})
	mark(s2.ID, attendance.Record{StudentID: alice.ID, Present: true})

	count := func(path string) int {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("query failed: %s", rec.Body.String())
		}
		var resp struct {
			Attendance []attendance.Attendance `json:"attendance"`
		}
		decodeBody(t, rec, &resp)
		return len(resp.Attendance)
	}

	if got := count("/api/attendance"); got != 3 {
		t.Errorf("all records = %v, want 3", got)
	}
	if got := count("/api/attendance?sessionId=" + s1.ID); got != 2 {
		t.Errorf("session records = %v, want 2", got)
	}
	if got := count("/api/attendance?studentId=" + bob.ID); got != 1 {
		t.Errorf("student records = %v, want 1", got)
	}
}

func Test_attendanceAPI_attendanceReport(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	alice := testutil.CreateStudent(t, app.students, "Alice", 9, parent.ID)
	s1 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), []string{alice.ID})
	s2 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), []string{alice.ID})
	s3 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), []string{alice.ID})
	token := getToken(t, tutor)

	marks := []struct {
		sessionID string
		present   bool
	}{
		{s1.ID, true},
		{s2.ID, true},
		{s3.ID, false},
	}
	for _, m := range marks {
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", token,
			marchallObj(t, attendance.MarkRequest{
				SessionID:      m.sessionID,
				AttendanceData: []attendance.Record{{StudentID: alice.ID, Present: m.present}},
			}))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("mark failed: %s", rec.Body.String())
		}
	}

	t.Run("report", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/attendance/report?studentId="+alice.ID, token)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Report []attendance.StudentReport `json:"report"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Report) != 1 {
			t.Fatalf("unexpected report: %+v", resp.Report)
		}
		row := resp.Report[0]
		if row.StudentName != "Alice" || row.TotalSessions != 3 || row.AttendedSessions != 2 || row.AttendancePercentage != 67 {
			t.Errorf("unexpected row: %+v", row)
		}
	})

	t.Run("report bounded by dates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet,
			"/api/attendance/report?startDate=2026-03-01T00:00:00Z&endDate=2026-03-10T00:00:00Z", token)
		app.server.ServeHTTP(rec, req)

		var resp struct {
			Report []attendance.StudentReport `json:"report"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Report) != 1 || resp.Report[0].TotalSessions != 2 || resp.Report[0].AttendancePercentage != 100 {
			t.Errorf("unexpected report: %+v", resp.Report)
		}
	})

	t.Run("export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/attendance/report/export?studentId="+alice.ID, token)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			t.Errorf("content type = %q", ct)
		}
		wantDisp := `attachment; filename="attendance-report-` + alice.ID + `.xlsx"`
		if disp := rec.Header().Get(echo.HeaderContentDisposition); disp != wantDisp {
			t.Errorf("disposition = %q, want %q", disp, wantDisp)
		}
		// xlsx files are zip archives
		if body := rec.Body.Bytes(); len(body) < 4 || !strings.HasPrefix(string(body), "PK") {
			t.Errorf("body does not look like an xlsx archive (%d bytes)", len(body))
		}
	})
}
