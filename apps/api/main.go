package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/classmeasures/hub/apps/api/echo"
	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/enrollment"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
	emailsvc "github.com/classmeasures/hub/services/email"
	logsvc "github.com/classmeasures/hub/services/logger"
	"github.com/classmeasures/hub/storage/database/mongodb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.Timeout)
	defer cancel()

	db, err := mongodb.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()
	if err = db.EnsureIndexes(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("creating indexes: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := mongodb.NewUserRepository(db)
	progRepo := mongodb.NewProgramRepository(db)
	stuRepo := mongodb.NewStudentRepository(db)
	sessRepo := mongodb.NewSessionRepository(db)
	attRepo := mongodb.NewAttendanceRepository(db)

	notifHub := notification.NewHub(notification.DefaultCapacity)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	progSvc := program.NewService(progRepo)
	stuSvc := student.NewService(stuRepo, usrRepo)
	sessSvc := session.NewService(sessRepo, progRepo, usrRepo)
	enrollSvc := enrollment.NewService(db, progRepo, stuRepo, usrRepo, mailSvc, notifHub)
	attSvc := attendance.NewService(attRepo, sessRepo, stuRepo, notifHub)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	program.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			ProgramSvc:    progSvc,
			StudentSvc:    stuSvc,
			SessionSvc:    sessSvc,
			EnrollmentSvc: enrollSvc,
			AttendanceSvc: attSvc,
			NotifHub:      notifHub,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
