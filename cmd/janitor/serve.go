package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/janitor/pkg/cleanup/driver"
	"mercator-hq/janitor/pkg/cli"
	"mercator-hq/janitor/pkg/engine"
	"mercator-hq/janitor/pkg/server"
	"mercator-hq/janitor/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	noSchedule    bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cleanup RPC endpoint and run the drain scheduler",
	Long: `Serve the cleanup RPC endpoint, health probes and metrics, and run the
cron-driven drain loop that ticks every enabled category.

Examples:
  # Start with the default config
  janitor serve

  # Serve RPC only; ticks come from an external driver
  janitor serve --no-schedule

  # Build every component and exit
  janitor serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.noSchedule, "no-schedule", false, "disable the drain scheduler")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "initialize the engine and exit")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("engine close failed", "error", err)
		}
	}()

	if err := eng.SyncCategories(ctx); err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to sync categories: %w", err))
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	go func() {
		if err := eng.WatchCategories(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("category watcher stopped", "error", err)
		}
	}()

	if cfg.Cleanup.ScheduleEnabled && !serveFlags.noSchedule {
		sched := driver.NewScheduler(eng.Driver, cfg.Cleanup.Schedule)
		if err := sched.Start(ctx); err != nil {
			return cli.NewConfigError("cleanup.schedule", err.Error())
		}
		defer sched.Stop()
		if next := sched.NextRun(); next != nil {
			slog.Info("next scheduled drain", "at", next)
		}
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	eng.RegisterHealthChecks(checker)

	srv := server.NewServer(cfg, eng.Controller, server.Options{
		Health:  checker,
		Version: versionInfo(),
		Metrics: eng.Metrics,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Janitor %s listening on %s (RPC %s)\n", Version, cfg.Server.ListenAddress, cfg.Server.APIPath)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}
