package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/config"
	"github.com/fedtools/fedcheck/internal/estimate"
	"github.com/fedtools/fedcheck/internal/export"
	applog "github.com/fedtools/fedcheck/internal/log"
	"github.com/fedtools/fedcheck/internal/target"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <targets-file>",
		Short: "Show what a validation run would do, without any network access",
		Long: `Plan computes a dry-run estimate from the cache alone: how many unique
URLs the target list contains, how many are still fresh in the cache, how
many would be probed, and roughly how long the run would take.

No probe is sent and the cache is not modified.

Examples:
  # Preview a run with defaults
  fedcheck plan targets.csv

  # Preview with a stricter freshness window and more workers
  fedcheck plan --max-age 24h --concurrency 20 targets.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runPlanCmd,
	}

	addRunFlags(cmd)

	cmd.Flags().Duration("assumed-latency", config.DefaultAssumedLatency,
		"Per-probe duration assumed for the time estimate")

	return cmd
}

// runPlanCmd executes the plan command.
func runPlanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.DryRun = true

	cfg.AssumedLatency, err = cmd.Flags().GetDuration("assumed-latency")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	targets, err := target.Load(cfg.TargetsFile)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	store := cache.Load(cfg.CacheFile, cache.WithLogger(logger))

	plan := estimate.Preview(targets, store, cfg.MaxAge, estimate.Options{
		Concurrency:    cfg.Concurrency,
		AssumedLatency: cfg.AssumedLatency,
	})

	return writeOutput(cfg, false, cmd.OutOrStdout(), func(w export.Writer) error {
		_, err := w.WritePlan(plan)
		return err
	})
}
