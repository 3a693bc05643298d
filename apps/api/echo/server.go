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

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/metrics"
)

type (
	// HealthCheck reports whether a backing service is reachable.
	HealthCheck func(ctx context.Context) error

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Accounts   *identity.Service
		Users      *user.Service
		Subjects   *subject.Service
		Classes    *class.Service
		Attendance *attendance.Service
		Auth       *session.Auth
		Metrics    *metricsvc.Metrics

		HealthChecks map[string]HealthCheck
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		tokens   *TokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		tokens:     NewTokenIssuer(deps.Conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.Metrics != nil {
		s.app.Use(s.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/healthz", s.health)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(s.tokens.jwtConfig()),
		revokedMiddleware(s.Auth),
		sessionMiddleware(s.Auth, s.Metrics),
	}

	registerSessionAPI(v1, authed, s)
	registerUserAPI(v1, authed, s)
	registerSubjectAPI(v1, authed, s)
	registerClassAPI(v1, authed, s)
	registerAttendanceAPI(v1, authed, s)
}

// Start blocks until the server stops. Errors other than a clean shutdown are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	code := http.StatusOK
	checks := make(map[string]string, len(s.HealthChecks))
	for name, check := range s.HealthChecks {
		if err := check(ctx.Request().Context()); err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	status := "ok"
	if code != http.StatusOK {
		status = "unavailable"
	}
	return ctx.JSON(code, echo.Map{"status": status, "build": s.Conf.Build, "checks": checks})
}
