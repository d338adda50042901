// Package execution turns weight deltas into simulated orders and fills,
// applies the cost model, and feeds the resulting fills into the
// portfolio accountant.
package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockbot/simcore/market"
	"github.com/stockbot/simcore/pkg/id"
	"github.com/stockbot/simcore/portfolio"
)

// FillPolicy selects how a step's orders are priced.
type FillPolicy string

const (
	// PolicyNextOpen fills entirely at the next bar's open.
	PolicyNextOpen FillPolicy = "next_open"
	// PolicyVWAPWindow fills at the volume-weighted average price over
	// the following vwap_bars bars. A truncated window at episode end is
	// a partial-window fill, flagged and continued, not an error.
	PolicyVWAPWindow FillPolicy = "vwap_window"
)

// Side of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType distinguishes spread-crossing market orders from resting
// limit orders.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Order is immutable once created. Either it is consumed into a Fill or it
// stays on the ledger unfilled; the unfilled remainder of a
// participation-capped order is dropped, not queued to the next bar.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Qty            float64 // requested, always positive
	Type           OrderType
	LimitOffsetBps float64
	Step           int
}

// Fill is the executed slice of an order.
type Fill struct {
	OrderID       string
	Symbol        string
	Qty           float64 // signed
	Price         float64
	Commission    float64
	Fee           float64 // USD, negative for maker rebates
	SlippageBps   float64
	Partial       bool
	PartialWindow bool
	NoFillReason  string // set on the order's ledger row when nothing filled
	Time          time.Time
	Step          int
}

// CostConfig holds the additive cost components.
type CostConfig struct {
	CommissionPerShare float64
	TakerFeeBps        float64
	MakerRebateBps     float64
	HalfSpreadBps      float64
	ImpactK            float64 // bps of impact at 100% participation
	MaxParticipation   float64 // cap on |qty| / bar volume
}

// Config for the execution model.
type Config struct {
	Policy         FillPolicy
	VWAPBars       int
	UseLimitOrders bool
	LimitOffsetBps float64
	Costs          CostConfig
}

// State is the per-step execution lifecycle.
type State int

const (
	Idle State = iota
	OrdersComputed
	Filled
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case OrdersComputed:
		return "orders_computed"
	case Filled:
		return "filled"
	case Settled:
		return "settled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepResult is the ledger contribution of one rebalance.
type StepResult struct {
	Orders   []Order
	Fills    []Fill
	Trades   []portfolio.ClosedTrade
	Turnover float64 // traded notional / equity
}

// Model prices and applies one rebalance per step.
type Model struct {
	cfg   Config
	state State
	log   zerolog.Logger
}

// NewModel builds an execution model. Config is validated upstream.
func NewModel(cfg Config, log zerolog.Logger) *Model {
	return &Model{cfg: cfg, state: Idle, log: log}
}

// State returns the current per-step lifecycle state.
func (m *Model) State() State { return m.state }

// Rebalance computes the per-symbol quantity deltas from target weights,
// prices them under the fill policy at fillIdx, applies costs, and mutates
// the account. Equity and current notionals are read as of the decision
// bar's marks, which the caller set before calling.
func (m *Model) Rebalance(step int, targets []float64, acct *portfolio.Account, panel *market.Panel, fillIdx int) (StepResult, error) {
	if fillIdx < 0 || fillIdx >= panel.Len() {
		return StepResult{}, fmt.Errorf("execution: fill index %d outside panel", fillIdx)
	}
	if len(targets) != len(panel.Symbols) {
		return StepResult{}, fmt.Errorf("execution: %d targets for %d symbols", len(targets), len(panel.Symbols))
	}

	m.state = Idle
	equity := acct.Equity()
	fillTime := panel.Times[fillIdx]

	var res StepResult
	if equity <= 0 {
		return res, nil
	}

	// 1) Orders from weight deltas.
	type pending struct {
		order Order
		qty   float64 // signed requested qty
	}
	var work []pending
	for i, sym := range panel.Symbols {
		current := 0.0
		if pos, ok := acct.Positions[sym]; ok {
			current = pos.Notional()
		}
		deltaNotional := targets[i]*equity - current
		if deltaNotional == 0 {
			continue
		}

		ref, partialWindow, volume := m.refPrice(panel, sym, fillIdx)
		if ref <= 0 {
			continue
		}
		qty := deltaNotional / ref

		side := Buy
		if qty < 0 {
			side = Sell
		}
		typ := Market
		offset := 0.0
		if m.cfg.UseLimitOrders {
			typ = Limit
			offset = m.cfg.LimitOffsetBps
		}
		o := Order{
			ID:             id.New(),
			Symbol:         sym,
			Side:           side,
			Qty:            math.Abs(qty),
			Type:           typ,
			LimitOffsetBps: offset,
			Step:           step,
		}
		res.Orders = append(res.Orders, o)
		work = append(work, pending{order: o, qty: qty})

		_ = partialWindow
		_ = volume
	}
	m.state = OrdersComputed

	// 2) Fills under participation and cost model.
	for _, p := range work {
		fill, ok := m.fill(p.order, p.qty, panel, fillIdx, fillTime)
		if !ok {
			if fill.NoFillReason != "" {
				m.log.Debug().
					Str("symbol", p.order.Symbol).
					Str("reason", fill.NoFillReason).
					Int("step", step).
					Msg("order not filled")
			}
			continue
		}
		res.Fills = append(res.Fills, fill)
	}
	m.state = Filled

	// 3) Settle into the accountant.
	traded := 0.0
	for _, f := range res.Fills {
		closed := acct.ApplyFill(f.Symbol, f.Qty, f.Price, f.Commission, f.Fee, f.Time, f.Step)
		res.Trades = append(res.Trades, closed...)
		traded += math.Abs(f.Qty) * f.Price
	}
	res.Turnover = traded / equity
	m.state = Settled

	return res, nil
}

// refPrice returns the policy's base fill price, whether the VWAP window
// was truncated, and the volume available to trade against.
func (m *Model) refPrice(panel *market.Panel, sym string, fillIdx int) (price float64, partialWindow bool, volume float64) {
	switch m.cfg.Policy {
	case PolicyVWAPWindow:
		end := fillIdx + m.cfg.VWAPBars
		if end > panel.Len() {
			end = panel.Len()
			partialWindow = true
		}
		var pv, v float64
		for i := fillIdx; i < end; i++ {
			b := panel.Bar(sym, i)
			typical := (b.High + b.Low + b.Close) / 3
			pv += typical * b.Volume
			v += b.Volume
		}
		if v <= 0 {
			return 0, partialWindow, 0
		}
		return pv / v, partialWindow, v
	default: // next_open
		b := panel.Bar(sym, fillIdx)
		return b.Open, false, b.Volume
	}
}

// fill prices one order. Zero or missing bar volume forces a no-fill:
// participation would be undefined and dividing by it is exactly the bug
// this guards against.
func (m *Model) fill(o Order, qty float64, panel *market.Panel, fillIdx int, fillTime time.Time) (Fill, bool) {
	ref, partialWindow, volume := m.refPrice(panel, o.Symbol, fillIdx)
	if ref <= 0 {
		return Fill{OrderID: o.ID, NoFillReason: "no reference price"}, false
	}
	if volume <= 0 {
		return Fill{OrderID: o.ID, NoFillReason: "zero volume"}, false
	}

	costs := m.cfg.Costs
	partial := false
	participation := math.Abs(qty) / volume
	if costs.MaxParticipation > 0 && participation > costs.MaxParticipation {
		qty = costs.MaxParticipation * volume * sign(qty)
		participation = costs.MaxParticipation
		partial = true
	}
	if qty == 0 {
		return Fill{OrderID: o.ID, NoFillReason: "rounded to zero"}, false
	}

	slippage := costs.HalfSpreadBps + costs.ImpactK*math.Sqrt(participation)
	price := ref * (1 + sign(qty)*slippage/1e4)
	feeBps := costs.TakerFeeBps

	if o.Type == Limit {
		// A resting order earns the rebate but only fills if the bar
		// trades through the limit price.
		limit := ref * (1 - sign(qty)*o.LimitOffsetBps/1e4)
		b := panel.Bar(o.Symbol, fillIdx)
		crossed := (qty > 0 && b.Low <= limit) || (qty < 0 && b.High >= limit)
		if !crossed {
			return Fill{OrderID: o.ID, NoFillReason: "limit not reached"}, false
		}
		price = limit
		slippage = 0
		feeBps = -costs.MakerRebateBps
	}

	notional := math.Abs(qty) * price
	return Fill{
		OrderID:       o.ID,
		Symbol:        o.Symbol,
		Qty:           qty,
		Price:         price,
		Commission:    costs.CommissionPerShare * math.Abs(qty),
		Fee:           notional * feeBps / 1e4,
		SlippageBps:   slippage,
		Partial:       partial,
		PartialWindow: partialWindow,
		Time:          fillTime,
		Step:          o.Step,
	}, true
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
