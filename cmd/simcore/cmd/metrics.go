package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stockbot/simcore/journal"
	"github.com/stockbot/simcore/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute run metrics from the journal",
	Long: `Derive performance statistics for a recorded run from its ledger.

With no run ID, lists all runs in the journal.

Examples:
  simcore metrics -d ./runs.sqlite
  simcore metrics -d ./runs.sqlite -r 01JD3V... --json`,
	RunE: runMetrics,
}

var (
	metricsDBPath  string
	metricsRunID   string
	metricsJSON    bool
	metricsPeriods float64
)

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVarP(&metricsDBPath, "db", "d", "./runs.sqlite", "SQLite journal path")
	metricsCmd.Flags().StringVarP(&metricsRunID, "run", "r", "", "run ID (omit to list runs)")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "emit metrics as JSON")
	metricsCmd.Flags().Float64Var(&metricsPeriods, "periods-per-year", 252, "bars per year for annualization")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(metricsDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	if metricsRunID == "" {
		runs, err := j.ListRuns()
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		fmt.Printf("%-28s %-10s %-18s %6s %12s %12s\n", "RUN", "STATUS", "REASON", "STEPS", "START", "END")
		for _, r := range runs {
			fmt.Printf("%-28s %-10s %-18s %6d %12.2f %12.2f\n",
				r.RunID, r.Status, r.Reason, r.Steps, r.StartEquity, r.EndEquity)
		}
		return nil
	}

	snaps, err := j.ListEquityByRun(metricsRunID)
	if err != nil {
		return fmt.Errorf("load equity: %w", err)
	}
	trades, err := j.ListTradesByRun(metricsRunID)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}

	equity := make([]float64, len(snaps))
	for i, s := range snaps {
		equity[i] = s.Equity
	}
	m := metrics.Compute(equity, trades, metricsPeriods)

	if metricsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	fmt.Printf("Run %s (%d steps, %d trades)\n\n", metricsRunID, len(snaps), len(trades))
	fmt.Printf("  Total Return:  %8.2f%%\n", m.TotalReturnPct)
	fmt.Printf("  Max Drawdown:  %8.2f%%\n", m.MaxDrawdownPct)
	fmt.Printf("  Annual Vol:    %8.2f%%\n", m.AnnualVolPct)
	fmt.Printf("  Sharpe:        %8.2f\n", m.Sharpe)
	fmt.Printf("  Win Rate:      %8.1f%%\n", m.WinRate*100)
	fmt.Printf("  Profit Factor: %8.2f\n", m.ProfitFactor)
	return nil
}
