package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/enrollment"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
)

type (
	// ServerDeps exposes all the Server's dependencies to be injected.
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       *user.Service
		ProgramSvc    *program.Service
		StudentSvc    *student.Service
		SessionSvc    *session.Service
		EnrollmentSvc *enrollment.Service
		AttendanceSvc *attendance.Service
		NotifHub      *notification.Hub
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		// Errors reports fatal listener errors.
		Errors() <-chan error
		// ShutdownSignal reports OS interrupt/terminate signals and
		// shutdown requests raised by the error handler.
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps        ServerDeps
		app         *echo.Echo
		errChan     chan error
		shutdownSig chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:        deps,
		app:         echo.New(),
		errChan:     make(chan error, 1),
		shutdownSig: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownSig, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	configureAuth(conf)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(api, jwt, s.deps)
	registerProgramAPI(api, jwt, s.deps)
	registerStudentAPI(api, jwt, s.deps)
	registerSessionAPI(api, jwt, s.deps)
	registerAttendanceAPI(api, jwt, s.deps)
	registerNotificationAPI(api, jwt, s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errChan <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errChan
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownSig
}

// signalShutdown is handed to the error handler to trigger a graceful stop
// on unrecoverable integrity errors. The send never blocks: once a shutdown
// is pending, further requests are redundant.
func (s *server) signalShutdown() {
	select {
	case s.shutdownSig <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Class Measures Hub API!")
}

// respond wraps a payload in the success envelope.
func respond(ctx echo.Context, code int, data echo.Map, msg ...string) error {
	body := echo.Map{"success": true}
	for k, v := range data {
		body[k] = v
	}
	if len(msg) > 0 {
		body["message"] = msg[0]
	}
	return ctx.JSON(code, body)
}
