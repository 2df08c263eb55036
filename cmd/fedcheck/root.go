// Package main provides the entry point for the fedcheck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for fedcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fedcheck",
		Short: "URL validation and cache engine for federation metadata",
		Long: `fedcheck checks whether the URLs declared in federated identity metadata
(privacy statements, information pages) are actually reachable.

Results are cached on disk, so repeated runs over a large federation only
probe URLs whose cached result has gone stale.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewCacheCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
