package echoconsole

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/behavior"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/core/student"
)

type (
	// Deps are the services the console pages are built on.
	Deps struct {
		Validate   *validator.Validate
		Translator ut.Translator
		Auth       *auth.Service
		Classes    *classroom.Service
		Students   *student.Service
		Attendance *attendance.Service
		Reconciler *attendance.Reconciler
		Drafts     attendance.DraftStore
		Behavior   *behavior.Service
		Reports    *report.Service
		Importer   *roster.Importer
		Email      core.EmailService
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     *Deps
		app      *echo.Echo
		jwt      middleware.JWTConfig
		cron     *cron.Cron
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		app:      echo.New(),
		jwt:      newJWTConfig(conf.SecretKey),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator)

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.jwt), backendTokenMiddleware}

	registerAuthAPI(v1, jwt, s.conf, s.deps)
	registerClassAPI(v1.Group("/classes", jwt...), s.deps)
	registerStudentAPI(v1.Group("/students", jwt...), s.deps)
	registerAttendanceAPI(v1.Group("/attendance", jwt...), s.deps)
	registerBehaviorAPI(v1.Group("/behavior", jwt...), s.deps)
	registerReportAPI(v1.Group("/reports", jwt...), s.conf, s.deps)

	if s.conf.Reports.Schedule != "" {
		s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
		job := newSummaryJob(s.conf, s.logger, s.deps)
		if _, err := s.cron.AddFunc(s.conf.Reports.Schedule, job.Run); err != nil {
			s.logger.Error("invalid reports schedule", errors.Wrap(err, "scheduling summary job"))
			s.cron = nil
		}
	}
}

// Start serves until the server is shut down; listen errors are sent on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if s.cron != nil {
		s.cron.Start()
	}
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// Shutdown stops the scheduler, waits for background sheet initializations and drains requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	if s.deps.Reconciler != nil {
		done := make(chan struct{})
		go func() {
			s.deps.Reconciler.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" console!")
}
