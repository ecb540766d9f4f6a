package echoweb

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
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/session"
	"github.com/trezcool/vims/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Sessions   *session.Provider
		MailSvc    core.EmailService
		Metrics    *metrics.Metrics
		Validate   *validator.Validate
		Translator ut.Translator
		Table      *route.Table // route.Default when nil

		DisableReqLogs bool
		DisableCSRF    bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		table    *route.Table
		views    map[string]view
		limiter  *loginLimiter
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) (Server, error) {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		table:    deps.Table,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if s.table == nil {
		s.table = route.Default
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) setup() error {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.Addr = conf.Server.Address
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s, func() { s.shutdown <- syscall.SIGTERM })
	rdr, err := newRenderer(conf.AppName)
	if err != nil {
		return err
	}
	s.app.Renderer = rdr

	limiter, err := newLoginLimiter(conf.Login.Rate, conf.Login.Burst, conf.Session.MaxActive)
	if err != nil {
		return errors.Wrap(err, "creating login limiter")
	}
	s.limiter = limiter
	s.views = s.registry()

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.Secure())
	s.app.Use(s.deps.Metrics.Middleware())
	s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(echo.Context) bool {
			return s.deps.DisableCSRF
		},
		TokenLookup:    "form:" + csrfField,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   conf.Session.CookieSecure,
		CookieHTTPOnly: true,
	}))
	s.app.Use(s.sessionMiddleware)

	s.app.GET("/", home)
	s.app.GET("/healthz", healthz)
	s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))

	registerAuthRoutes(s)
	registerDashboardRoutes(s)
	return nil
}

func (s *server) Start() {
	s.deps.Logger.Info("web server listening on " + s.deps.Conf.Server.Address)
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.StartServer(s.app.Server); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, "/login")
}

func healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
