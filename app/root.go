// Package app implements the main application commands.
package app

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/logger"
)

// EnvPrefix prefixes the environment variables bound to flags, e.g. OIDC_RP_CONFIG.
const EnvPrefix = "OIDC_RP"

// Keys of the viper bound settings.
const (
	keyConfig = "config"
	keyDev    = "dev"
	keyListen = "listen"
)

var rootCmd = &cobra.Command{
	Use:   "oidc-rp",
	Short: "oidc-rp is an OpenID Connect relying party",
	Long: `oidc-rp logs users in with the authorization code flow of an
OpenID Connect provider, validates the ID token and shows the claims,
userinfo, introspection and revocation results of the session.`,
	Args:          cobra.OnlyValidArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().String(keyConfig, "./etc/", "Directory holding main.toml")

	if err := viper.BindPFlag(keyConfig, rootCmd.PersistentFlags().Lookup(keyConfig)); err != nil {
		log.Fatal().Err(err).Msg("failed to bind config flag")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config from the directory given by --config or
// OIDC_RP_CONFIG and applies --dev and --listen.
func loadConfig() (config.Config, error) {
	path := viper.GetString(keyConfig)
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	cfg, err := config.ReadConfig(path)
	if err != nil {
		return cfg, err
	}

	if viper.GetBool(keyDev) {
		cfg.DevMode = true
	}

	if port := viper.GetInt(keyListen); port > 0 {
		cfg.Webserver.Port = port
	}

	return cfg, nil
}

// initLogger sets up the global logger, dev mode logs at debug level to the console.
func initLogger(cfg *config.Config) error {
	if cfg.DevMode {
		cfg.Log.LogLevel = "debug"
		cfg.Log.Console.Enabled = true
		cfg.Log.Console.UseConsoleWriter = true
	}

	return logger.Init(cfg.Log)
}
