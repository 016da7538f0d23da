package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/janitor/pkg/cli"
	"mercator-hq/janitor/pkg/config"
	"mercator-hq/janitor/pkg/telemetry/logging"
)

// defaultConfigFile is read when present and --config is not given.
const defaultConfigFile = "janitor.yaml"

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Janitor - checkpointed data-retention cleanup engine",
	Long: `Janitor purges expired data in bounded, checkpointed batches.

Each data category (a database table, a storage bucket, a cache index) gets at
most one active run. A run advances one batch per tick, records transient
failures with a retry-after hint, and can be paused, resumed or stopped at any
time. Ticks come from the built-in cron driver, the HTTP RPC endpoint, or the
commands below.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default "+defaultConfigFile+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(cli.FormatText), "output format (text, json)")
}

// loadConfig loads .env files, the config file and JANITOR_* overrides, then
// installs the process logger.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NewConfigError("", err.Error())
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	config.SetConfig(cfg)

	slog.Debug("configuration loaded", "path", path, "storage", cfg.Storage.Backend)
	return cfg, nil
}

// printResult formats data in the selected output format.
func printResult(cmd *cobra.Command, data any) error {
	f, err := cli.NewFormatter(cli.OutputFormat(outputFormat))
	if err != nil {
		return err
	}
	return f.FormatTo(cmd.OutOrStdout(), data)
}
