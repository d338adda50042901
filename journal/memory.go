package journal

// MemoryJournal keeps the ledger in slices. Used by tests and by callers
// that compute metrics in-process without an artifact directory.
type MemoryJournal struct {
	Runs   []RunRecord
	Orders []OrderRecord
	Fills  []FillRecord
	Trades []TradeRecord
	Equity []EquitySnapshot
	Marks  []MarkRecord
}

func NewMemory() *MemoryJournal { return &MemoryJournal{} }

func (j *MemoryJournal) RecordRun(r RunRecord) error {
	j.Runs = append(j.Runs, r)
	return nil
}

func (j *MemoryJournal) RecordOrder(o OrderRecord) error {
	j.Orders = append(j.Orders, o)
	return nil
}

func (j *MemoryJournal) RecordFill(f FillRecord) error {
	j.Fills = append(j.Fills, f)
	return nil
}

func (j *MemoryJournal) RecordTrade(t TradeRecord) error {
	j.Trades = append(j.Trades, t)
	return nil
}

func (j *MemoryJournal) RecordEquity(e EquitySnapshot) error {
	j.Equity = append(j.Equity, e)
	return nil
}

func (j *MemoryJournal) RecordMark(m MarkRecord) error {
	j.Marks = append(j.Marks, m)
	return nil
}

func (j *MemoryJournal) Close() error { return nil }
