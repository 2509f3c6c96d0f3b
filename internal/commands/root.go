package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bfx-report",
	Short: "Trading venue report synchronization service",
	Long: `A synchronization service that incrementally mirrors trading venue
history into MySQL.

Features:
• Checkpointed newest-first pagination per collection
• Per-account history (trades, ledgers, orders, movements, funding)
• Public collections with per-symbol gap backfill
• Bounded retry handling for rate limits and nonce errors
• Progress reporting over NATS with a Redis-backed snapshot`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
