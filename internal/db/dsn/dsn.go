// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"strings"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
)

// Create builds the Data Source Name for the configured engine.
// mysql: user:password@tcp(host:port)/name?extras
// postgres: host=.. port=.. user=.. password=.. dbname=.. extras
// sqlite: the database name is used as file path.
func Create(dbCfg *config.Config) string {
	switch dbCfg.DB.GormEngine {
	case config.EnginePostgres:
		return Postgres(dbCfg)
	case config.EngineSQLite:
		return dbCfg.DB.Name
	default:
		return MySQL(dbCfg)
	}
}

// MySQL builds a go-sql-driver style DSN.
func MySQL(dbCfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.DB.User,
		dbCfg.DB.Password,
		dbCfg.DB.Host,
		dbCfg.DB.Port,
		dbCfg.DB.Name,
		dbCfg.DB.Extras,
	)
}

// Postgres builds a libpq keyword/value DSN.
func Postgres(dbCfg *config.Config) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		dbCfg.DB.Host,
		dbCfg.DB.Port,
		dbCfg.DB.User,
		dbCfg.DB.Password,
		dbCfg.DB.Name,
	)

	if extras := strings.TrimSpace(dbCfg.DB.Extras); extras != "" {
		out += " " + extras
	}

	return out
}
