package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores the full ledger in one database file; the query
// layer in query.go reads it back for replay and metrics.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, symbols, mode, status, reason, steps, start_equity, end_equity, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbols, r.Mode, r.Status, r.Reason,
		r.Steps, r.StartEquity, r.EndEquity, r.Config,
	)
	return err
}

func (j *SQLiteJournal) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(run_id, order_id, symbol, side, qty, type, limit_offset_bps, step)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.OrderID, o.Symbol, o.Side, o.Qty, o.Type, o.LimitOffsetBps, o.Step,
	)
	return err
}

func (j *SQLiteJournal) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, order_id, symbol, qty, price, commission, fee, slippage_bps, partial, partial_window, step, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.OrderID, r.Symbol, r.Qty, r.Price, r.Commission, r.Fee, r.SlippageBps,
		r.Partial, r.PartialWindow, r.Step, r.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, symbol, qty, entry_price, exit_price, entry_time, exit_time, entry_step, exit_step, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Symbol, t.Qty, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.EntryStep, t.ExitStep, t.RealizedPL,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, step, time, cash, equity, gross_exposure, drawdown, reward, halted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Step, e.Time, e.Cash, e.Equity, e.GrossExposure, e.Drawdown, e.Reward, e.Halted,
	)
	return err
}

func (j *SQLiteJournal) RecordMark(m MarkRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO marks (run_id, step, symbol, price) VALUES (?, ?, ?, ?)`,
		m.RunID, m.Step, m.Symbol, m.Price,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
