// Command rclights decodes the light switch channel of an RC receiver and
// drives the vehicle lights. Light transitions are published to MQTT.
package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/rclights/internal/config"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		broker     string
		httpAddr   string
		heartbeat  time.Duration
		samples    int
		prefix     string
		reset      bool
	)

	// load reads the config file and applies any flags the user set.
	load := func(cmd *cobra.Command) (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("broker") {
			cfg.MQTT.Broker = broker
		}
		if flags.Changed("http") {
			cfg.HTTP.Addr = httpAddr
		}
		if flags.Changed("heartbeat") {
			cfg.MQTT.HeartbeatMs = heartbeat.Milliseconds()
		}
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		log.SetLevel(level)
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:           "rclights",
		Short:         "Drive vehicle lights from an RC receiver channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path. TOML file overriding the built-in defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the light controller until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return run(cfg, log.StandardLogger())
		},
	}
	runCmd.Flags().StringVar(&broker, "broker", "", "MQTT broker address (empty to disable)")
	runCmd.Flags().StringVar(&httpAddr, "http", "", "HTTP status address (empty to disable)")
	runCmd.Flags().DurationVar(&heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")

	printStateCmd := &cobra.Command{
		Use:   "print-state",
		Short: "Sample the input, print the decoded configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return printHardwareState(cmd.OutOrStdout(), cfg, samples)
		},
	}
	printStateCmd.Flags().IntVarP(&samples, "samples", "n", 8, "Number of input periods to sample")

	decodeCmd := &cobra.Command{
		Use:   "decode <width_us>...",
		Short: "Decode pulse widths offline with the configured calibration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return printDecode(cmd.OutOrStdout(), cfg, args)
		},
	}

	defaultConfigCmd := &cobra.Command{
		Use:   "default-config",
		Short: "Print the built-in configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), config.Default())
		},
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the binary, a systemd unit and the default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return install(prefix, configPath, reset)
		},
	}
	installCmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Install prefix. Prefix to install directory, default is /")
	installCmd.Flags().BoolVar(&reset, "reset", false, "Reset config. Overwrite the config even if one already exists")

	rootCmd.AddCommand(runCmd, printStateCmd, decodeCmd, defaultConfigCmd, installCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
