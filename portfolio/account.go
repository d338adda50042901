// Package portfolio is the single source of truth for cash, positions and
// equity. Positions mutate only through fill application; everything else
// reads.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ReconcileTolerance is the relative tolerance for the equity identity
// check after every step.
const ReconcileTolerance = 1e-6

// InvariantViolation is fatal and non-recoverable: the accounting identity
// broke, which means a bug in fill or cost logic, never bad market data.
type InvariantViolation struct {
	Want   float64
	Got    float64
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("portfolio: accounting invariant violated (%s): want %.10f got %.10f", e.Detail, e.Want, e.Got)
}

type lot struct {
	Qty   float64 // signed, same sign as the position
	Price float64
	Time  time.Time
	Step  int
}

// Position tracks one symbol. Quantity is signed; shorts only appear under
// the tanh_leverage regime. All open lots share the quantity's sign.
type Position struct {
	Symbol   string
	Qty      float64
	AvgCost  float64
	LastMark float64

	lots []lot
}

// Notional is quantity times last mark.
func (p *Position) Notional() float64 { return p.Qty * p.LastMark }

// ClosedTrade is the FIFO pairing of an opening lot with the reducing fill
// that consumed it.
type ClosedTrade struct {
	Symbol     string
	Qty        float64 // signed as the opening side
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	EntryStep  int
	ExitStep   int
	RealizedPL float64
}

// Account owns cash and positions.
type Account struct {
	InitialCash float64
	Cash        float64
	Positions   map[string]*Position

	RealizedPnL   float64
	HighWaterMark float64
	EquityHistory []float64

	// symbols keeps position iteration ordered so equity sums are
	// bit-for-bit reproducible across runs and ledger replays.
	symbols []string

	equity      float64
	commissions float64
	fees        float64
}

// NewAccount starts flat with the given cash.
func NewAccount(cash float64) *Account {
	return &Account{
		InitialCash:   cash,
		Cash:          cash,
		Positions:     make(map[string]*Position),
		HighWaterMark: cash,
		equity:        cash,
	}
}

// ApplyFill books a fill: cash moves by signed notional plus costs, the
// position's lot queue absorbs adds in order and realizes P&L FIFO on
// reductions. Returns any trades the fill closed.
func (a *Account) ApplyFill(symbol string, qty, price, commission, fee float64, t time.Time, step int) []ClosedTrade {
	if qty == 0 {
		return nil
	}

	a.Cash -= qty*price + commission + fee
	a.commissions += commission
	a.fees += fee

	pos, ok := a.Positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol, LastMark: price}
		a.Positions[symbol] = pos
		a.symbols = append(a.symbols, symbol)
		sort.Strings(a.symbols)
	}

	var closed []ClosedTrade
	remaining := qty

	if pos.Qty != 0 && sign(qty) != sign(pos.Qty) {
		// Reducing or reversing: consume opening lots oldest-first.
		for len(pos.lots) > 0 && remaining != 0 {
			l := &pos.lots[0]
			matched := math.Min(math.Abs(remaining), math.Abs(l.Qty))
			lotQty := matched * sign(l.Qty)

			pl := (price - l.Price) * lotQty
			a.RealizedPnL += pl
			closed = append(closed, ClosedTrade{
				Symbol:     symbol,
				Qty:        lotQty,
				EntryPrice: l.Price,
				ExitPrice:  price,
				EntryTime:  l.Time,
				ExitTime:   t,
				EntryStep:  l.Step,
				ExitStep:   step,
				RealizedPL: pl,
			})

			l.Qty -= lotQty
			remaining += lotQty
			if l.Qty == 0 {
				pos.lots = pos.lots[1:]
			}
		}
	}

	if remaining != 0 {
		// Same-direction add, or the surviving half of a reversal.
		pos.lots = append(pos.lots, lot{Qty: remaining, Price: price, Time: t, Step: step})
	}

	pos.Qty = 0
	notional, absQty := 0.0, 0.0
	for _, l := range pos.lots {
		pos.Qty += l.Qty
		notional += math.Abs(l.Qty) * l.Price
		absQty += math.Abs(l.Qty)
	}
	if absQty > 0 {
		pos.AvgCost = notional / absQty
	} else {
		pos.AvgCost = 0
	}
	pos.LastMark = price

	return closed
}

// MarkToMarket revalues every position at the given close prices, appends
// the equity point and advances the high-water mark. Symbols absent from
// marks keep their last mark.
func (a *Account) MarkToMarket(marks map[string]float64) float64 {
	equity := a.Cash
	for _, sym := range a.symbols {
		pos := a.Positions[sym]
		if m, ok := marks[sym]; ok {
			pos.LastMark = m
		}
		equity += pos.Qty * pos.LastMark
	}
	a.equity = equity
	a.EquityHistory = append(a.EquityHistory, equity)
	if equity > a.HighWaterMark {
		a.HighWaterMark = equity
	}
	return equity
}

// Equity is the last mark-to-market value.
func (a *Account) Equity() float64 { return a.equity }

// Drawdown is 1 - equity/high_water_mark, never negative.
func (a *Account) Drawdown() float64 {
	if a.HighWaterMark <= 0 {
		return 0
	}
	dd := 1 - a.equity/a.HighWaterMark
	if dd < 0 {
		return 0
	}
	return dd
}

// UnrealizedPnL sums (mark - cost) over open lots.
func (a *Account) UnrealizedPnL() float64 {
	u := 0.0
	for _, sym := range a.symbols {
		pos := a.Positions[sym]
		for _, l := range pos.lots {
			u += (pos.LastMark - l.Price) * l.Qty
		}
	}
	return u
}

// GrossExposure is sum(|notional|) / equity, 0 when equity is gone.
func (a *Account) GrossExposure() float64 {
	if a.equity <= 0 {
		return 0
	}
	g := 0.0
	for _, sym := range a.symbols {
		g += math.Abs(a.Positions[sym].Notional())
	}
	return g / a.equity
}

// CashFraction is cash / equity.
func (a *Account) CashFraction() float64 {
	if a.equity <= 0 {
		return 0
	}
	return a.Cash / a.equity
}

// Weights returns per-symbol notional/equity in the given symbol order.
func (a *Account) Weights(symbols []string) []float64 {
	out := make([]float64, len(symbols))
	if a.equity <= 0 {
		return out
	}
	for i, sym := range symbols {
		if pos, ok := a.Positions[sym]; ok {
			out[i] = pos.Notional() / a.equity
		}
	}
	return out
}

// Reconcile checks the accounting identity two ways: equity must equal
// cash plus marked positions, and must equal initial cash plus realized
// and unrealized P&L net of costs. Any breach is fatal.
func (a *Account) Reconcile() error {
	direct := a.Cash
	for _, sym := range a.symbols {
		pos := a.Positions[sym]
		direct += pos.Qty * pos.LastMark
	}
	if !withinTol(a.equity, direct) {
		return &InvariantViolation{Want: direct, Got: a.equity, Detail: "equity != cash + sum(qty*mark)"}
	}

	identity := a.InitialCash + a.RealizedPnL + a.UnrealizedPnL() - a.commissions - a.fees
	if !withinTol(a.equity, identity) {
		return &InvariantViolation{Want: identity, Got: a.equity, Detail: "equity != initial + pnl - costs"}
	}
	return nil
}

func withinTol(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return diff <= ReconcileTolerance*scale
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
