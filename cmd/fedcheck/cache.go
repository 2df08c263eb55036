package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/config"
	applog "github.com/fedtools/fedcheck/internal/log"
)

// NewCacheCmd creates the cache command with its subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the URL validation cache",
	}

	cmd.PersistentFlags().String("cache-file", "",
		"Cache file path (default: XDG cache directory)")

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

// newCacheStatsCmd creates the cache stats subcommand.
func newCacheStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print entry count, age range, and approximate size of the cache",
		RunE:  runCacheStatsCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// runCacheStatsCmd executes the cache stats subcommand.
func runCacheStatsCmd(cmd *cobra.Command, _ []string) error {
	store, err := openCacheStore(cmd)
	if err != nil {
		return err
	}

	stats := store.Stats()

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOut {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache file: %s\n", store.Path())
	fmt.Fprintf(out, "Entries:    %d\n", stats.EntryCount)
	if stats.EntryCount > 0 {
		fmt.Fprintf(out, "Oldest:     %s\n", stats.Oldest.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(out, "Newest:     %s\n", stats.Newest.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(out, "Size:       %d bytes\n", stats.ApproxSizeBytes)
	return nil
}

// newCacheClearCmd creates the cache clear subcommand.
func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the cache",
		Long: `Clear removes every entry from the cache and rewrites the cache file.
The next validation run probes every URL again.`,
		RunE: runCacheClearCmd,
	}
}

// runCacheClearCmd executes the cache clear subcommand.
func runCacheClearCmd(cmd *cobra.Command, _ []string) error {
	store, err := openCacheStore(cmd)
	if err != nil {
		return err
	}

	removed := store.Len()
	store.Clear()
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to persist cleared cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entry(ies) from %s\n", removed, store.Path())
	return nil
}

// openCacheStore loads the cache named by the persistent --cache-file flag.
func openCacheStore(cmd *cobra.Command) (*cache.Store, error) {
	path, err := cmd.Flags().GetString("cache-file")
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = config.XDGCacheFile()
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))
	return cache.Load(path, cache.WithLogger(logger)), nil
}
