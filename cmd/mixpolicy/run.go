package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/config"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	mixFile       string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the mix policy server",
	Long: `Start the mix policy server with the specified configuration.

The server accepts mix registrations and stream evaluations over HTTP,
journals registrations, activity and decisions to SQLite when the store
is enabled, and serves health and Prometheus metrics endpoints.

Examples:
  # Start with defaults
  mixpolicy run

  # Start with a config file and a mix file
  mixpolicy run --config /etc/mixpolicy/config.yaml --mix-file mixes.yaml

  # Validate config without starting the server
  mixpolicy run --config config.yaml --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.mixFile, "mix-file", "", "override the mix file")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	overrides := runOverrides()
	overrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
		return nil
	}

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	a.configPath, a.adjust = cfgFile, overrides

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	if err := a.Run(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// runOverrides returns a function applying the run command line flags to a
// loaded configuration.
func runOverrides() func(*config.Config) {
	listen, level, mixFile, debug := runFlags.listenAddress, runFlags.logLevel, runFlags.mixFile, verbose
	return func(cfg *config.Config) {
		if listen != "" {
			cfg.Server.ListenAddress = listen
		}
		if level != "" {
			cfg.Telemetry.Logging.Level = level
		}
		if mixFile != "" {
			cfg.Policy.MixFile = mixFile
		}
		if debug {
			cfg.Telemetry.Logging.Level = "debug"
		}
	}
}
