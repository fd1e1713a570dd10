package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/cry-relay/internal/config"
	"github.com/oshokin/cry-relay/internal/logger"
	"github.com/oshokin/cry-relay/internal/service/relay"
	"github.com/oshokin/cry-relay/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the relay.
	rootCmd = &cobra.Command{
		Use:   "cry-relay [listen-address]",
		Short: "Relay cry-detection events from the sensor to the operator chat.",
		Long: `Starts the HTTP relay that receives cry events from the infant monitor,
groups them into episodes, logs one record per episode and notifies the
operator over Telegram with throttled reminders.

Alerting starts disabled after every restart; send /enable from the operator
chat to arm it. Credentials are read from the environment (TELEGRAM_TOKEN,
CHAT_ID, STORE_DSN); timings and addresses can be set in the YAML file.
The listen address argument overrides the configured one (e.g. :8000).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &relay.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				LogLevel:      logLevel,
			}

			return relay.Run(ctx, options)
		},
	}
)

// Execute runs the cry-relay CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf(context.Background(), "cry-relay: %v", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Empty config path reads config.DefaultConfigFilename when it exists.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
}
