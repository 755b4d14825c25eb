package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	fiberlogger "github.com/GoPowerDNS-Admin/oidc-rp/internal/logger/adapter/fiber"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/callback"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/home"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/logout"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler/resource"
	authmiddleware "github.com/GoPowerDNS-Admin/oidc-rp/internal/web/middleware/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

const (
	// CheckAlivePath answers 200 while serving and 503 while draining.
	CheckAlivePath = "/checkalive"

	// MetricsPath exposes the prometheus metrics.
	MetricsPath = "/metrics"
)

// ErrNilDependency is returned by New if a dependency is missing.
var ErrNilDependency = errors.New("config, relying party and session store are required")

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// SetFastShutdown skips the 503 drain phase on shutdown.
func (s *Service) SetFastShutdown(fast bool) {
	s.fastShutDown = fast
}

// Option customizes the fiber app, tests use it to replace the views.
type Option func(*fiber.Config)

// WithViews replaces the template engine.
func WithViews(v fiber.Views) Option {
	return func(c *fiber.Config) {
		c.Views = v
	}
}

// New creates the web service with all routes registered.
func New(cfg *config.Config, rp *auth.RelyingParty, sessions session.Store, opts ...Option) (*Service, error) {
	if cfg == nil || rp == nil || sessions == nil {
		return nil, ErrNilDependency
	}

	fiberCfg := fiber.Config{
		ReadBufferSize: 8192,
		AppName:        cfg.Title,
		CaseSensitive:  true,
		Prefork:        false,
		Immutable:      true,
		Views:          newTemplateEngine(cfg.DevMode),
	}

	for _, opt := range opts {
		opt(&fiberCfg)
	}

	app := fiber.New(fiberCfg)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
		UserLocal:     authmiddleware.LocalUsername,
	}))

	if cfg.Webserver.CookieEncryptionKey != "" {
		app.Use(encryptcookie.New(encryptcookie.Config{
			Key: cfg.Webserver.CookieEncryptionKey,
		}))
	}

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
			},
		),
	)

	service := &Service{
		cfg: cfg,
		App: app,
	}
	service.alive.Store(true)

	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	deps := &handler.Deps{
		Cfg:      cfg,
		RP:       rp,
		Sessions: sessions,
		Cookies:  cookie.New(cfg.DevMode),
	}

	for _, h := range []handler.Service{
		new(login.Service),
		new(callback.Service),
		new(home.Service),
		new(resource.Service),
		new(logout.Service),
	} {
		if err := h.Init(app, deps); err != nil {
			return nil, err
		}
	}

	return service, nil
}

func newTemplateEngine(devMode bool) *html.Engine {
	// in dev mode, use local filesystem for templates
	if devMode {
		engine := html.New("./internal/web/templates", ".gohtml")
		engine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")

		return engine
	}

	return html.NewFileSystem(http.FS(templateEmbedFS{embeddedTemplates}), ".gohtml")
}
