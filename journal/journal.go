// Package journal is the append-only artifact layer: every run writes its
// orders, fills, trades, per-symbol marks and equity points through a
// Journal, and the ledger alone is enough to rebuild the equity curve
// without replaying the simulation.
package journal

import "time"

// RunRecord summarizes a finished run.
type RunRecord struct {
	RunID       string
	Created     time.Time
	Symbols     string // comma-joined
	Mode        string
	Status      string
	Reason      string
	Steps       int
	StartEquity float64
	EndEquity   float64
	Config      []byte // config snapshot, YAML
}

// OrderRecord is one requested order; orders are never mutated, so the
// unfilled remainder of a capped order shows up only as a fill smaller
// than the request.
type OrderRecord struct {
	RunID          string
	OrderID        string
	Symbol         string
	Side           string
	Qty            float64
	Type           string
	LimitOffsetBps float64
	Step           int
}

// FillRecord is one executed fill.
type FillRecord struct {
	RunID         string
	OrderID       string
	Symbol        string
	Qty           float64 // signed
	Price         float64
	Commission    float64
	Fee           float64
	SlippageBps   float64
	Partial       bool
	PartialWindow bool
	Step          int
	Time          time.Time
}

// TradeRecord is a FIFO-matched round trip.
type TradeRecord struct {
	RunID      string
	Symbol     string
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	EntryStep  int
	ExitStep   int
	RealizedPL float64
}

// EquitySnapshot is one step's accounting state.
type EquitySnapshot struct {
	RunID         string
	Step          int
	Time          time.Time
	Cash          float64
	Equity        float64
	GrossExposure float64
	Drawdown      float64
	Reward        float64
	Halted        bool
}

// MarkRecord is the close used to mark a symbol at a step; replay needs
// these to revalue positions without the bar data.
type MarkRecord struct {
	RunID  string
	Step   int
	Symbol string
	Price  float64
}

// Journal records a run's artifacts. Implementations append in call
// order; replay depends on that ordering.
type Journal interface {
	RecordRun(RunRecord) error
	RecordOrder(OrderRecord) error
	RecordFill(FillRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordMark(MarkRecord) error
	Close() error
}
