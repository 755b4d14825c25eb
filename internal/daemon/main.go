// Package daemon wires database, session storage, relying party and web
// service together.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/dsn"
	gormadapter "github.com/GoPowerDNS-Admin/oidc-rp/internal/logger/adapter/gorm"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/httpclient"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// SessionTable holds the server side sessions in mysql and postgres.
const SessionTable = "sessions"

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the web service and blocks until it was shut down.
func (d *Daemon) Start() error {
	addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)

	go func() {
		if err := d.webService.Start(addr); err != nil {
			log.Error().Err(err).Msg("web service stopped")
		}
	}()

	log.Info().Str("addr", addr).Str("url", d.cfg.Webserver.URL).Msg("web service started")

	d.webService.WaitShutdown()

	return nil
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}

	gormDB, err := db.Open(cfg, gormadapter.New(GormLogLevel(zerolog.GlobalLevel())))
	if err != nil {
		return nil, err
	}

	storage, err := SessionStorage(cfg)
	if err != nil {
		return nil, err
	}

	rp := auth.NewRelyingParty(
		&cfg.OIDC,
		auth.NewIdentityResolver(gormDB),
		httpclient.New(cfg.OIDC.HTTPTimeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OIDC.HTTPTimeout+time.Second)
	rp.Warm(ctx)
	cancel()

	webService, err := web.New(cfg, rp, session.New(storage, cfg.Webserver.Session.ExpiryTime))
	if err != nil {
		return nil, err
	}

	webService.SetFastShutdown(cfg.DevMode)

	return &Daemon{cfg: cfg, webService: webService}, nil
}

// SessionStorage returns the session backend for the configured database
// engine. sqlite keeps sessions in memory.
func SessionStorage(cfg *config.Config) (fiber.Storage, error) {
	switch cfg.DB.GormEngine {
	case config.EngineMySQL, "":
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.MySQL(cfg),
			Table:         SessionTable,
		}), nil
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.Postgres(cfg),
			Table:         SessionTable,
		}), nil
	case config.EngineSQLite:
		log.Warn().Msg("sqlite engine: sessions are kept in memory and lost on restart")

		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", db.ErrUnknownEngine, cfg.DB.GormEngine)
	}
}

// GormLogLevel maps the zerolog level to the gorm log level.
func GormLogLevel(level zerolog.Level) gormlogger.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return gormlogger.Info
	case level <= zerolog.WarnLevel:
		return gormlogger.Warn
	case level <= zerolog.ErrorLevel:
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}
