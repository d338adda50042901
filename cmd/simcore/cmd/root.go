package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simcore",
	Short: "A deterministic portfolio simulation core for training and evaluating trading policies",
	Long: `Simcore runs bar-by-bar portfolio simulations against historical data.

It provides tools for:
  - Running deterministic episodes from a config file
  - Mapping policy actions to portfolio weights (long-only or leveraged)
  - Execution simulation with slippage, fees, and participation caps
  - FIFO lot accounting with per-step reconciliation
  - Append-only run journals (SQLite or CSV) with ledger replay
  - Risk guards: weight caps, daily loss limits, volatility targeting`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
