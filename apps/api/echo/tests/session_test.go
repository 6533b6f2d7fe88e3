package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/user"
	testutil "github.com/classmeasures/hub/tests"
)

func Test_sessionAPI_sessionCreate(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	token := getToken(t, tutor)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	body := func(programID, tutorID string) []byte {
		return marchallObj(t, session.NewSession{ProgramID: programID, TutorID: tutorID, Date: date})
	}

	tests := []httpTest{
		{
			name: "tutor or admin required", token: getToken(t, parent), body: body(chess.ID, tutor.ID),
			wantCode: http.StatusForbidden, wantData: jsonErr("permission denied"),
		},
		{
			name: "unknown program", token: token, body: body("5ff74db702aab3462be7b10a", tutor.ID),
			wantCode: http.StatusNotFound, wantData: jsonErr("program not found"),
		},
		{
			name: "tutor does not resolve", token: token, body: body(chess.ID, parent.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"success": false,
				"message": "assigned tutor does not resolve to an active tutor user",
				"errors":  echo.Map{"tutor_id": "assigned tutor does not resolve to an active tutor user"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/sessions", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("tutor schedules session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/sessions", token, body(chess.ID, tutor.ID))
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Session session.Session `json:"session"`
		}
		decodeBody(t, rec, &resp)
		if resp.Session.ID == "" || !resp.Session.Date.Equal(date) {
			t.Errorf("unexpected session: %+v", resp.Session)
		}
		// times fall back to the program schedule
		if resp.Session.StartTime != chess.Schedule.StartTime || resp.Session.EndTime != chess.Schedule.EndTime {
			t.Errorf("unexpected times: %+v", resp.Session)
		}
	})
}

func Test_sessionAPI_sessionQuery(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	parent := testutil.CreateUser(t, app.users, "Pat Parent", "patparent", "pat@test.cm", "", []string{user.RoleParent}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	coding := testutil.CreateProgram(t, app.programs, "Intro to Coding", program.CategoryCoding, 10, tutor.ID)

	s1 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), nil)
	s2 := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), nil)
	s3 := testutil.CreateSession(t, app.sessions, coding.ID, tutor.ID, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), nil)

	token := getToken(t, parent)
	want := func(sessions ...session.Session) []byte {
		return marchallObj(t, echo.Map{"success": true, "sessions": sessions})
	}

	tests := []httpTest{
		{name: "auth required", path: "/api/sessions", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "get all ordered by date", path: "/api/sessions", token: token, wantCode: http.StatusOK, wantData: want(s1, s3, s2)},
		{name: "filter by program", path: "/api/sessions?programId=" + chess.ID, token: token, wantCode: http.StatusOK, wantData: want(s1, s2)},
		{
			name: "filter by date range", path: "/api/sessions?date_from=2026-03-03T00:00:00Z&date_to=2026-03-08T00:00:00Z",
			token: token, wantCode: http.StatusOK, wantData: want(s3),
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

func Test_sessionAPI_sessionUpdate(t *testing.T) {
	app := newTestApp(t)

	tutor := testutil.CreateUser(t, app.users, "Tim Tutor", "timtutor", "tim@test.cm", "", []string{user.RoleTutor}, true)
	chess := testutil.CreateProgram(t, app.programs, "Chess Club", program.CategoryChess, 10, tutor.ID)
	sess := testutil.CreateSession(t, app.sessions, chess.ID, tutor.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), []string{"5ff74db702aab3462be7b10a"})

	t.Run("update notes and attachments", func(t *testing.T) {
		body := marchallObj(t, session.UpdateSession{
			Notes:       "covered the Sicilian defence",
			Attachments: []session.Attachment{{Name: "worksheet.pdf", URL: "https://files.test.cm/worksheet.pdf"}},
		})
		req, rec := newAuthRequest(http.MethodPut, "/api/sessions/"+sess.ID, getToken(t, tutor), body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Session session.Session `json:"session"`
		}
		decodeBody(t, rec, &resp)
		if resp.Session.Notes != "covered the Sicilian defence" || len(resp.Session.Attachments) != 1 {
			t.Errorf("unexpected session: %+v", resp.Session)
		}
		// the enrollment snapshot survives edits
		if !resp.Session.HasStudent("5ff74db702aab3462be7b10a") {
			t.Errorf("snapshot lost: %+v", resp.Session.Students)
		}
	})

	t.Run("invalid time format", func(t *testing.T) {
		body := marchallObj(t, session.UpdateSession{StartTime: "4pm"})
		req, rec := newAuthRequest(http.MethodPut, "/api/sessions/"+sess.ID, getToken(t, tutor), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"success": false,
				"message": "validation failed",
				"errors":  echo.Map{"start_time": "must be a time of day in HH:MM format"},
			}),
		}, rec)
	})
}
