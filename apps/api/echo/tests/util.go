package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	. "github.com/classmeasures/hub/apps/api/echo"
	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/enrollment"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
	emailsvc "github.com/classmeasures/hub/services/email"
	dummydb "github.com/classmeasures/hub/storage/database/dummy"
)

var errMissingToken = jsonErr("missing or malformed jwt")

// testApp bundles a Server wired on the in-memory store with the repos the
// tests use to set up fixtures.
type testApp struct {
	server   Server
	conf     *core.Config
	users    user.Repository
	programs program.Repository
	students student.Repository
	sessions session.Repository
	hub      *notification.Hub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Class Measures Hub",
		SecretKey: []byte("t3st-s3cr3t-k3y!"),
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.PasswordResetTimeoutDelta = 3 * 24 * time.Hour

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}
	app := &testApp{
		conf:     conf,
		users:    dummydb.NewUserRepository(db),
		programs: dummydb.NewProgramRepository(db),
		students: dummydb.NewStudentRepository(db),
		sessions: dummydb.NewSessionRepository(db),
		hub:      notification.NewHub(notification.DefaultCapacity),
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	attRepo := dummydb.NewAttendanceRepository(db)

	usrSvc := user.NewService(app.users, mailSvc, conf)
	progSvc := program.NewService(app.programs)
	stuSvc := student.NewService(app.students, app.users)
	sessSvc := session.NewService(app.sessions, app.programs, app.users)
	enrollSvc := enrollment.NewService(db, app.programs, app.students, app.users, mailSvc, app.hub)
	attSvc := attendance.NewService(attRepo, app.sessions, app.students, app.hub)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	program.InitValidators(validate, translator)

	app.server = NewServer(
		ServerDeps{
			Conf:          conf,
			Logger:        testLogger{},
			UserSvc:       usrSvc,
			ProgramSvc:    progSvc,
			StudentSvc:    stuSvc,
			SessionSvc:    sessSvc,
			EnrollmentSvc: enrollSvc,
			AttendanceSvc: attSvc,
			NotifHub:      app.hub,
			Validate:      validate,
			Translator:    translator,
		},
	)
	return app
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// testLogger drops everything; handler tests assert on responses, not logs.
type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonErr(msg string) []byte {
	data, _ := json.Marshal(echo.Map{"success": false, "message": msg})
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decodeBody unmarshals the response envelope into out and fails on error.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decodeBody() failed: %v; body %s", err, rec.Body.String())
	}
}
