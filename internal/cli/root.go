package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gsproxy",
		Short: "Operational tooling for the game server LLM relay",
		Long: `gsproxy is the operational CLI for the game server LLM relay.

It provisions game server credentials (printing the signed token once and
storing only its digest) and runs maintenance sweeps against the configured
database.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newSweepCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
