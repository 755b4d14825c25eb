package app

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.Abs("../etc")
	require.NoError(t, err)

	return dir
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("OIDC_RP_CONFIG", configDir(t))
	t.Setenv("OIDC_RP_LISTEN", "9191")
	t.Setenv("OIDC_RP_DEV", "true")

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Webserver.Port)
	assert.True(t, cfg.DevMode)
}

func TestDumpConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("OIDC_RP_CLIENT_SECRET", "very-secret")
	viper.Set(keyConfig, configDir(t))

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"dump-config", "--json", "--config", configDir(t)})

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), `"ClientID"`)
	assert.NotContains(t, out.String(), "very-secret")
}
