package daemon

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level zerolog.Level
		want  gormlogger.LogLevel
	}{
		{zerolog.TraceLevel, gormlogger.Info},
		{zerolog.DebugLevel, gormlogger.Info},
		{zerolog.InfoLevel, gormlogger.Warn},
		{zerolog.WarnLevel, gormlogger.Warn},
		{zerolog.ErrorLevel, gormlogger.Error},
		{zerolog.Disabled, gormlogger.Silent},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, GormLogLevel(tt.level))
		})
	}
}

func TestSessionStorage(t *testing.T) {
	s, err := SessionStorage(&config.Config{DB: config.DB{GormEngine: config.EngineSQLite}})
	require.NoError(t, err)
	assert.Nil(t, s, "sqlite falls back to in-memory sessions")

	_, err = SessionStorage(&config.Config{DB: config.DB{GormEngine: "oracle"}})
	require.ErrorIs(t, err, db.ErrUnknownEngine)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, config.ErrNilConfig)
}
