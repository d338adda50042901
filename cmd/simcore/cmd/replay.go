package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockbot/simcore/journal"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild a run's equity curve from its ledger and verify it",
	Long: `Replay a recorded run from the journal alone.

The fill and mark ledgers are pushed back through the accountant and the
rebuilt equity series is compared bit-for-bit against the recorded one.
Any divergence means the ledger is incomplete or the books were wrong.

Example:
  simcore replay -d ./runs.sqlite -r 01JD3V...`,
	RunE: runReplay,
}

var (
	replayDBPath string
	replayRunID  string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "./runs.sqlite", "SQLite journal path")
	replayCmd.Flags().StringVarP(&replayRunID, "run", "r", "", "run ID to replay (required)")
	replayCmd.MarkFlagRequired("run")
}

func runReplay(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(replayDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	run, err := j.GetRun(replayRunID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	fills, err := j.ListFillsByRun(replayRunID)
	if err != nil {
		return fmt.Errorf("load fills: %w", err)
	}
	marks, err := j.ListMarksByRun(replayRunID)
	if err != nil {
		return fmt.Errorf("load marks: %w", err)
	}
	recorded, err := j.ListEquityByRun(replayRunID)
	if err != nil {
		return fmt.Errorf("load equity: %w", err)
	}

	fmt.Printf("Replaying run %s (%d fills, %d equity points)\n", replayRunID, len(fills), len(recorded))

	if err := journal.VerifyReconstruction(run.StartEquity, fills, marks, recorded); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("✓ Ledger verified: %d steps reproduce the recorded equity curve exactly\n", len(recorded))
	fmt.Printf("  Start: $%.2f  End: $%.2f\n", run.StartEquity, run.EndEquity)
	return nil
}
