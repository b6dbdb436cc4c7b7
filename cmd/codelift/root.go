// Package main provides the entry point for the codelift CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for codelift.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codelift",
		Short: "AI-assisted source code refactoring pipeline",
		Long: `codelift processes every source file in a project directory through
four AI stages: analysis, refactoring, documentation, and review.

The refactor and documentation stages overwrite files in place with the
model's output. There is no undo; run codelift only on projects under
version control.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
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
