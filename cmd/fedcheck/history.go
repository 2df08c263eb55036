package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fedtools/fedcheck/internal/config"
	"github.com/fedtools/fedcheck/internal/history"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past validation runs",
		Long: `History lists past validation runs recorded by the validate command,
newest first, with their aggregate counts. Useful for watching link rot
trends in a federation over time.`,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", 10, "Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("data-dir", "", "History database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = config.XDGDataDir()
	}

	if _, err := os.Stat(filepath.Join(dataDir, history.DBFileName)); os.IsNotExist(err) {
		return history.ErrNoHistory
	}

	db, err := history.Open(dataDir, history.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return history.ErrNoHistory
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOut {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	out := cmd.OutOrStdout()
	for _, run := range runs {
		fmt.Fprintf(out, "%s  %-24s total %4d  ok %4d  broken %4d  cached %4d  (%s)\n",
			run.StartedAt.Format("2006-01-02 15:04"),
			filepath.Base(run.TargetsFile),
			run.Total,
			run.Accessible,
			run.Broken,
			run.FromCache,
			run.Duration.Round(time.Millisecond),
		)
	}
	return nil
}
