package cli

import (
	"fmt"

	"Go2NetSentry/internal/config"
	sentrylog "Go2NetSentry/internal/log"

	"github.com/spf13/cobra"
)

// Version is injected via ldflags at build time.
var Version = "dev"

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ns-sentry",
	Short: "SDN flow telemetry and intrusion response engine",
	Long: `ns-sentry watches packet-ins from a switch, keeps per-flow statistics, writes
periodic flow feature rows and blocks hosts that exceed fixed packet or SYN
thresholds. It also ingests Snort alerts from a unix datagram socket.

Examples:
  ns-sentry run --config configs/config.yaml
  ns-sentry replay capture.pcap --label attack
`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			cfg = config.Default()
		} else if cfg, err = config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		return sentrylog.Configure(cfg.LogLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the YAML configuration (empty for built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: "+sentrylog.SupportedLevels)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
}
