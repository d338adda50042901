package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVJournal writes one CSV file per ledger under a run directory:
// run.csv, orders.csv, fills.csv, trades.csv, equity.csv, marks.csv.
type CSVJournal struct {
	files  []*os.File
	runs   *csv.Writer
	orders *csv.Writer
	fills  *csv.Writer
	trades *csv.Writer
	equity *csv.Writer
	marks  *csv.Writer
}

// NewCSV creates the directory and the ledger files with headers.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.runs, err = open("run.csv", []string{"run_id", "created", "symbols", "mode", "status", "reason", "steps", "start_equity", "end_equity"}); err != nil {
		return nil, err
	}
	if j.orders, err = open("orders.csv", []string{"run_id", "order_id", "symbol", "side", "qty", "type", "limit_offset_bps", "step"}); err != nil {
		return nil, err
	}
	if j.fills, err = open("fills.csv", []string{"run_id", "order_id", "symbol", "qty", "price", "commission", "fee", "slippage_bps", "partial", "partial_window", "step", "time"}); err != nil {
		return nil, err
	}
	if j.trades, err = open("trades.csv", []string{"run_id", "symbol", "qty", "entry_price", "exit_price", "entry_time", "exit_time", "entry_step", "exit_step", "realized_pl"}); err != nil {
		return nil, err
	}
	if j.equity, err = open("equity.csv", []string{"run_id", "step", "time", "cash", "equity", "gross_exposure", "drawdown", "reward", "halted"}); err != nil {
		return nil, err
	}
	if j.marks, err = open("marks.csv", []string{"run_id", "step", "symbol", "price"}); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return write(j.runs, []string{
		r.RunID, r.Created.Format(time.RFC3339), r.Symbols, r.Mode, r.Status, r.Reason,
		strconv.Itoa(r.Steps), f(r.StartEquity), f(r.EndEquity),
	})
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	return write(j.orders, []string{
		o.RunID, o.OrderID, o.Symbol, o.Side, f(o.Qty), o.Type, f(o.LimitOffsetBps), strconv.Itoa(o.Step),
	})
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	return write(j.fills, []string{
		r.RunID, r.OrderID, r.Symbol, f(r.Qty), f(r.Price), f(r.Commission), f(r.Fee), f(r.SlippageBps),
		strconv.FormatBool(r.Partial), strconv.FormatBool(r.PartialWindow),
		strconv.Itoa(r.Step), r.Time.Format(time.RFC3339),
	})
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.RunID, t.Symbol, f(t.Qty), f(t.EntryPrice), f(t.ExitPrice),
		t.EntryTime.Format(time.RFC3339), t.ExitTime.Format(time.RFC3339),
		strconv.Itoa(t.EntryStep), strconv.Itoa(t.ExitStep), f(t.RealizedPL),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.RunID, strconv.Itoa(e.Step), e.Time.Format(time.RFC3339),
		f(e.Cash), f(e.Equity), f(e.GrossExposure), f(e.Drawdown), f(e.Reward),
		strconv.FormatBool(e.Halted),
	})
}

func (j *CSVJournal) RecordMark(m MarkRecord) error {
	return write(j.marks, []string{m.RunID, strconv.Itoa(m.Step), m.Symbol, f(m.Price)})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.runs, j.orders, j.fills, j.trades, j.equity, j.marks} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, f := range j.files {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// f formats floats the way the equity/fill ledgers expect: full float64
// round-trip precision, so replay reads back the exact value.
func f(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
