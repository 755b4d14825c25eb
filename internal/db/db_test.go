package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
)

func TestDialector(t *testing.T) {
	for _, engine := range []string{"", config.EngineMySQL, config.EnginePostgres, config.EngineSQLite} {
		d, err := Dialector(&config.Config{DB: config.DB{GormEngine: engine, Name: "x"}})
		require.NoError(t, err, engine)
		assert.NotNil(t, d)
	}

	_, err := Dialector(&config.Config{DB: config.DB{GormEngine: "oracle"}})
	require.ErrorIs(t, err, ErrUnknownEngine)
}

func TestOpenSQLiteMigrates(t *testing.T) {
	cfg := &config.Config{DB: config.DB{
		GormEngine: config.EngineSQLite,
		Name:       filepath.Join(t.TempDir(), "rp.db"),
	}}

	db, err := Open(cfg, nil)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.User{}))
}
