package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().Bool(keyDev, false, "Enable dev mode (plain http cookies, templates from disk, debug log)")
	startCmd.Flags().Int(keyListen, 0, "Listening port, overrides Webserver.Port")

	for _, key := range []string{keyDev, keyListen} {
		if err := viper.BindPFlag(key, startCmd.Flags().Lookup(key)); err != nil {
			log.Fatal().Err(err).Str("flag", key).Msg("failed to bind flag")
		}
	}

	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relying party web service",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err = initLogger(&cfg); err != nil {
			return err
		}

		d, err := daemon.New(&cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to start daemon")

			return err
		}

		return d.Start()
	},
}
