package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/controller"
	"mercator-hq/janitor/pkg/cleanup/driver"
	"mercator-hq/janitor/pkg/cli"
	"mercator-hq/janitor/pkg/engine"
	"mercator-hq/janitor/pkg/server"
)

// withEngine builds an engine from the loaded config, syncs categories and
// runs fn against it.
func withEngine(cmd *cobra.Command, name string, fn func(ctx context.Context, eng *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("engine close failed", "error", err)
		}
	}()

	if err := eng.SyncCategories(ctx); err != nil {
		return cli.NewCommandError(name, err)
	}
	return fn(ctx, eng)
}

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"list"},
	Short:   "List enabled categories and their latest runs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, "categories", func(ctx context.Context, eng *engine.Engine) error {
			statuses, err := eng.Controller.List(ctx)
			if err != nil {
				return err
			}
			return printResult(cmd, statuses)
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start <category>",
	Short: "Start a run for a category",
	Long: `Start a run for a category. If the category already has an active run the
command fails with exit code 4 and prints that run's ID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, "start", func(ctx context.Context, eng *engine.Engine) error {
			run, err := eng.Controller.Start(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd, run)
		})
	},
}

var tickFlags struct {
	batchSize int
	cutoff    string
	untilDone bool
	progress  bool
}

var tickCmd = &cobra.Command{
	Use:   "tick <run-id>",
	Short: "Process one batch of a run",
	Long: `Process one batch of a run. With --until-done, keep ticking until the run
finishes, stops, or records a transient failure.

Examples:
  janitor tick 7d0c... --batch-size 200
  janitor tick 7d0c... --cutoff 2025-01-01 --until-done`,
	Args: cobra.ExactArgs(1),
	RunE: runTick,
}

func runTick(cmd *cobra.Command, args []string) error {
	cutoff, err := server.ParseCutoff(tickFlags.cutoff)
	if err != nil {
		return err
	}
	opts := cleanup.TickOptions{BatchSize: tickFlags.batchSize, Cutoff: cutoff}
	runID := args[0]

	return withEngine(cmd, "tick", func(ctx context.Context, eng *engine.Engine) error {
		if !tickFlags.untilDone {
			res, err := eng.Controller.Tick(ctx, runID, opts)
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		}

		var progress cli.ProgressReporter
		if tickFlags.progress {
			run, err := eng.Controller.Run(ctx, runID)
			if err != nil {
				return err
			}
			estimate, err := eng.Controller.Scan(ctx, run.CategoryID, cutoff)
			if err != nil {
				return err
			}
			progress = cli.NewProgressReporter(cmd.ErrOrStderr())
			progress.Start(estimate)
		}

		var res *cleanup.TickResult
		var deleted int64
		for {
			res, err = eng.Controller.Tick(ctx, runID, opts)
			if err != nil {
				if progress != nil {
					progress.Error(err)
				}
				return err
			}
			deleted += int64(res.Deleted)
			if progress != nil {
				progress.Update(deleted)
			}
			if !res.HasMore || res.Skipped || res.LastError != nil {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if progress != nil {
			progress.Finish()
		}
		return printResult(cmd, res)
	})
}

var scanCutoff string

var scanCmd = &cobra.Command{
	Use:   "scan <category>",
	Short: "Estimate how many items a run would delete",
	Long:  `Estimate how many items a run would delete. Prints unknown (-1) when the category has no estimator.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cutoff, err := server.ParseCutoff(scanCutoff)
		if err != nil {
			return err
		}
		return withEngine(cmd, "scan", func(ctx context.Context, eng *engine.Engine) error {
			n, err := eng.Controller.Scan(ctx, args[0], cutoff)
			if err != nil {
				return err
			}
			return printResult(cmd, cli.Estimate{CategoryID: args[0], Cutoff: cutoff, Estimate: n})
		})
	},
}

// transitionCmd builds the pause, resume and stop commands.
func transitionCmd(use, short string, op func(*controller.Controller, context.Context, string) (*cleanup.Run, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <run-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, use, func(ctx context.Context, eng *engine.Engine) error {
				run, err := op(eng.Controller, ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, run)
			})
		},
	}
}

var drainTimeout time.Duration

var drainCmd = &cobra.Command{
	Use:   "drain [category...]",
	Short: "Run one drain pass now",
	Long: `Run one drain pass: start or attach to a run for each enabled category (or
only the named ones) and tick it until done, waiting, or out of budget.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, "drain", func(ctx context.Context, eng *engine.Engine) error {
			if drainTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, drainTimeout)
				defer cancel()
			}

			if len(args) == 0 {
				report, err := eng.Driver.Drain(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, report)
			}

			started := time.Now()
			report := &driver.Report{StartedAt: started}
			for _, id := range args {
				rep, err := eng.Driver.DrainCategory(ctx, id)
				if err != nil {
					return err
				}
				report.Categories = append(report.Categories, rep)
			}
			report.Duration = time.Since(started)
			return printResult(cmd, report)
		})
	},
}

func init() {
	tickCmd.Flags().IntVar(&tickFlags.batchSize, "batch-size", 0, "override the category batch size")
	tickCmd.Flags().StringVar(&tickFlags.cutoff, "cutoff", "", "override the retention cutoff (RFC 3339 or YYYY-MM-DD)")
	tickCmd.Flags().BoolVar(&tickFlags.untilDone, "until-done", false, "keep ticking until the run stops making progress")
	tickCmd.Flags().BoolVar(&tickFlags.progress, "progress", false, "show a progress bar with --until-done")

	scanCmd.Flags().StringVar(&scanCutoff, "cutoff", "", "override the retention cutoff (RFC 3339 or YYYY-MM-DD)")

	drainCmd.Flags().DurationVar(&drainTimeout, "timeout", 0, "abort the drain after this long (0 means no limit)")

	rootCmd.AddCommand(
		categoriesCmd,
		startCmd,
		tickCmd,
		scanCmd,
		drainCmd,
		transitionCmd("pause", "Pause a running run", (*controller.Controller).Pause),
		transitionCmd("resume", "Resume a paused run", (*controller.Controller).Resume),
		transitionCmd("stop", "Stop a run regardless of remaining work", (*controller.Controller).Stop),
	)
}
