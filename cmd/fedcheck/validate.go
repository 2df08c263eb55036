package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fedtools/fedcheck/internal/aggregate"
	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/config"
	"github.com/fedtools/fedcheck/internal/export"
	"github.com/fedtools/fedcheck/internal/history"
	applog "github.com/fedtools/fedcheck/internal/log"
	"github.com/fedtools/fedcheck/internal/model"
	"github.com/fedtools/fedcheck/internal/probe"
	"github.com/fedtools/fedcheck/internal/scheduler"
	"github.com/fedtools/fedcheck/internal/target"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <targets-file>",
		Short: "Probe the URLs in a target list and report which are broken",
		Long: `Validate probes every unique URL in the target list with a single HTTP
request, reusing cached results that are younger than the freshness window.

The target list is a CSV or JSON file of (url, entity_id, federation) rows,
typically produced by a metadata analysis step. Results are merged back into
the on-disk cache, so interrupted runs keep their progress.

Examples:
  # Validate a target list with defaults
  fedcheck validate targets.csv

  # Force re-probing of anything older than a day, 20 probes in flight
  fedcheck validate --max-age 24h --concurrency 20 targets.csv

  # Machine-readable output for pipelines
  fedcheck validate --json -o results.json targets.csv

Configuration file (.fedcheck) example:
  concurrency: 20
  timeout: 15s
  max_age: 72h
  host_rps: 2`,
		Args: cobra.ExactArgs(1),
		RunE: runValidateCmd,
	}

	addRunFlags(cmd)

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Hard deadline for each probe request")
	cmd.Flags().Float64P("host-rps", "r", config.DefaultHostRPS,
		"Per-host request rate cap (0 disables)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with probe requests")
	cmd.Flags().Int("checkpoint", 0,
		"Save the cache every N merged probes (0 saves only at the end)")
	cmd.Flags().Bool("no-history", false,
		"Skip recording this run in the history database")
	cmd.Flags().Bool("all", false,
		"List accessible targets too, not only broken ones (text output)")

	return cmd
}

// addRunFlags registers the flags shared between validate and plan.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of probes in flight")
	cmd.Flags().DurationP("max-age", "a", config.DefaultMaxAge,
		"Cache freshness window; older entries are re-probed")
	cmd.Flags().String("cache-file", "",
		"Cache file path (default: XDG cache directory)")
	cmd.Flags().Bool("unique-urls", false,
		"Count URLs shared by several entities once instead of per owner")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .fedcheck in current or home directory)")
}

// runValidateCmd executes the validate command.
func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("host-rps") {
		cfg.HostRPS, err = cmd.Flags().GetFloat64("host-rps")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("user-agent") {
		cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
		if err != nil {
			return err
		}
	}
	cfg.Checkpoint, err = cmd.Flags().GetInt("checkpoint")
	if err != nil {
		return err
	}
	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveHistory = !noHistory

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Graceful shutdown on interrupt: the scheduler keeps partial results.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	return runValidate(ctx, cfg, logger, showAll, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the flags shared by validate and plan.
// The configuration file is applied first; explicitly set flags win.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.TargetsFile = args[0]

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file, it must exist.
	// A searched-for one may not.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(file)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("max-age") {
		cfg.MaxAge, err = cmd.Flags().GetDuration("max-age")
		if err != nil {
			return nil, err
		}
	}
	if cacheFile, err := cmd.Flags().GetString("cache-file"); err != nil {
		return nil, err
	} else if cacheFile != "" {
		cfg.CacheFile = cacheFile
	}

	cfg.UniqueURLs, err = cmd.Flags().GetBool("unique-urls")
	if err != nil {
		return nil, err
	}
	cfg.JSONOutput, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownOutput, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// runValidate executes the validation run.
func runValidate(ctx context.Context, cfg *config.Config, logger *slog.Logger, showAll bool, stdout io.Writer) error {
	targets, err := target.Load(cfg.TargetsFile)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}
	if len(targets) == 0 {
		return errors.New("target list is empty")
	}

	logger.Info("starting validation",
		"targets", len(targets),
		"concurrency", cfg.Concurrency,
		"maxAge", cfg.MaxAge,
		"cacheFile", cfg.CacheFile,
	)

	store := cache.Load(cfg.CacheFile, cache.WithLogger(logger))

	prober := probe.New(
		probe.WithTimeout(cfg.Timeout),
		probe.WithUserAgent(cfg.UserAgent),
	)

	sched := scheduler.New(prober, store,
		scheduler.WithLogger(logger),
		scheduler.WithConcurrency(cfg.Concurrency),
		scheduler.WithMaxAge(cfg.MaxAge),
		scheduler.WithHostRPS(cfg.HostRPS),
		scheduler.WithCheckpoint(cfg.Checkpoint),
	)

	startTime := time.Now()
	outcomes, runErr := sched.Run(ctx, targets)
	elapsed := time.Since(startTime)

	if runErr != nil {
		// Partial results are still reported below.
		logger.Warn("validation run incomplete", "error", runErr, "outcomes", len(outcomes))
	}

	mode := aggregate.CountPerOwner
	if cfg.UniqueURLs {
		mode = aggregate.CountUniqueURL
	}
	summary := aggregate.Fold(outcomes, mode)

	report := export.NewReport(outcomes, summary, cfg.TargetsFile)
	if err := writeOutput(cfg, showAll, stdout, func(w export.Writer) error {
		_, err := w.Write(report)
		return err
	}); err != nil {
		return err
	}

	if cfg.SaveHistory {
		// Cancellation must not lose the history row for a partial run.
		saveCtx := context.WithoutCancel(ctx)
		if err := saveRunHistory(saveCtx, cfg, summary, startTime, elapsed); err != nil {
			logger.Error("failed to save run history", "error", err)
		}
	}

	return runErr
}

// saveRunHistory records the run in the history database.
func saveRunHistory(ctx context.Context, cfg *config.Config, summary model.Summary, startedAt time.Time, elapsed time.Duration) error {
	db, err := history.Open(cfg.HistoryDir, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.SaveRun(ctx, history.RunFromSummary(summary, startedAt, elapsed, cfg.TargetsFile))
	return err
}

// writeOutput builds the configured writer and invokes write with it.
// Shared by validate (results) and plan (dry run).
func writeOutput(cfg *config.Config, showAll bool, stdout io.Writer, write func(export.Writer) error) error {
	output, closer, err := openOutput(cfg.OutputFile, stdout)
	if err != nil {
		return err
	}
	defer closer()

	var writer export.Writer
	switch {
	case cfg.JSONOutput:
		writer = export.NewJSONWriter(output, export.WithPrettyPrint())
	case cfg.MarkdownOutput:
		writer = export.NewMarkdownWriter(output)
	case showAll:
		writer = export.NewTextWriter(output, export.WithShowAll())
	default:
		writer = export.NewTextWriter(output)
	}

	return write(writer)
}

// openOutput opens the output destination. An empty path means stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
