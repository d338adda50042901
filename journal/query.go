package journal

import (
	"database/sql"
	"fmt"
)

// GetRun returns a run's summary row.
func (j *SQLiteJournal) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	row := j.db.QueryRow(`
		SELECT run_id, created, symbols, mode, status, reason, steps, start_equity, end_equity, config
		FROM runs WHERE run_id = ?`, runID)

	err := row.Scan(&rec.RunID, &rec.Created, &rec.Symbols, &rec.Mode, &rec.Status,
		&rec.Reason, &rec.Steps, &rec.StartEquity, &rec.EndEquity, &rec.Config)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	return rec, err
}

// ListRuns returns all run summaries, newest first.
func (j *SQLiteJournal) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, created, symbols, mode, status, reason, steps, start_equity, end_equity, config
		FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.Created, &rec.Symbols, &rec.Mode, &rec.Status,
			&rec.Reason, &rec.Steps, &rec.StartEquity, &rec.EndEquity, &rec.Config); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListFillsByRun returns fills in insertion order within each step.
func (j *SQLiteJournal) ListFillsByRun(runID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, order_id, symbol, qty, price, commission, fee, slippage_bps, partial, partial_window, step, time
		FROM fills WHERE run_id = ? ORDER BY step ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var rec FillRecord
		if err := rows.Scan(&rec.RunID, &rec.OrderID, &rec.Symbol, &rec.Qty, &rec.Price,
			&rec.Commission, &rec.Fee, &rec.SlippageBps, &rec.Partial, &rec.PartialWindow,
			&rec.Step, &rec.Time); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquityByRun returns the equity series in step order.
func (j *SQLiteJournal) ListEquityByRun(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, step, time, cash, equity, gross_exposure, drawdown, reward, halted
		FROM equity WHERE run_id = ? ORDER BY step ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(&rec.RunID, &rec.Step, &rec.Time, &rec.Cash, &rec.Equity,
			&rec.GrossExposure, &rec.Drawdown, &rec.Reward, &rec.Halted); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTradesByRun returns closed trades in exit order.
func (j *SQLiteJournal) ListTradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, symbol, qty, entry_price, exit_price, entry_time, exit_time, entry_step, exit_step, realized_pl
		FROM trades WHERE run_id = ? ORDER BY exit_step ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(&rec.RunID, &rec.Symbol, &rec.Qty, &rec.EntryPrice, &rec.ExitPrice,
			&rec.EntryTime, &rec.ExitTime, &rec.EntryStep, &rec.ExitStep, &rec.RealizedPL); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListMarksByRun returns marks ordered by step then symbol, the same order
// the accountant sums equity in.
func (j *SQLiteJournal) ListMarksByRun(runID string) ([]MarkRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, step, symbol, price
		FROM marks WHERE run_id = ? ORDER BY step ASC, symbol ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarkRecord
	for rows.Next() {
		var rec MarkRecord
		if err := rows.Scan(&rec.RunID, &rec.Step, &rec.Symbol, &rec.Price); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
