package journal

import (
	"fmt"
	"sort"

	"github.com/stockbot/simcore/portfolio"
)

// ReconstructEquity rebuilds the equity series from the fill and mark
// ledgers alone, running them back through the same accountant the live
// step loop used. Given the same records the result is bit-for-bit
// identical to the recorded series.
func ReconstructEquity(initialCash float64, fills []FillRecord, marks []MarkRecord) ([]float64, error) {
	marksByStep := map[int]map[string]float64{}
	var steps []int
	for _, m := range marks {
		byStep, ok := marksByStep[m.Step]
		if !ok {
			byStep = map[string]float64{}
			marksByStep[m.Step] = byStep
			steps = append(steps, m.Step)
		}
		byStep[m.Symbol] = m.Price
	}
	sort.Ints(steps)

	fillsByStep := map[int][]FillRecord{}
	for _, f := range fills {
		fillsByStep[f.Step] = append(fillsByStep[f.Step], f)
	}

	acct := portfolio.NewAccount(initialCash)
	equity := make([]float64, 0, len(steps))
	for _, step := range steps {
		for _, f := range fillsByStep[step] {
			acct.ApplyFill(f.Symbol, f.Qty, f.Price, f.Commission, f.Fee, f.Time, f.Step)
		}
		equity = append(equity, acct.MarkToMarket(marksByStep[step]))
		if err := acct.Reconcile(); err != nil {
			return nil, fmt.Errorf("replay step %d: %w", step, err)
		}
	}
	return equity, nil
}

// VerifyReconstruction replays the ledger and compares against the
// recorded equity series exactly.
func VerifyReconstruction(initialCash float64, fills []FillRecord, marks []MarkRecord, recorded []EquitySnapshot) error {
	rebuilt, err := ReconstructEquity(initialCash, fills, marks)
	if err != nil {
		return err
	}
	if len(rebuilt) != len(recorded) {
		return fmt.Errorf("replay produced %d equity points, ledger has %d", len(rebuilt), len(recorded))
	}
	for i, snap := range recorded {
		if rebuilt[i] != snap.Equity {
			return fmt.Errorf("step %d: replayed equity %.10f != recorded %.10f", snap.Step, rebuilt[i], snap.Equity)
		}
	}
	return nil
}
