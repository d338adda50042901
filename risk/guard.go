// Package risk enforces pre-trade weight caps, intra-day loss limits with
// a flatten-and-halt response, and volatility targeting. It sits between
// the action mapper and the execution model as a redundant defense: caps
// the mapper already honors are checked again here.
package risk

import (
	"math"
	"time"
)

// VolTargetConfig scales exposure toward a target annualized volatility.
type VolTargetConfig struct {
	Enabled      bool
	AnnualTarget float64
	MinVol       float64
	ClampMin     float64
	ClampMax     float64
}

// Config for the guard layer. GrossLeverageCap and InvestMax mirror the
// mapper's mode caps; whichever is set gets re-enforced here.
type Config struct {
	PerNameWeightCap  float64
	DailyLossLimitPct float64 // loss as percent of start-of-day equity, 0 disables
	InvestMax         float64
	GrossLeverageCap  float64
	VolTarget         VolTargetConfig
}

// Guard carries the intra-day state: start-of-day equity and whether the
// daily loss limit tripped. A halt only clears at the next UTC day
// boundary.
type Guard struct {
	cfg Config

	day              time.Time
	startOfDayEquity float64
	halted           bool
}

// NewGuard creates a guard; day state initializes on the first OnEquity.
func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Halted reports whether new entries are blocked for the rest of the day.
func (g *Guard) Halted() bool { return g.halted }

// PreTrade clips proposed weights and applies the volatility-targeting
// scalar. While halted it forces every weight to zero, flattening the
// book at the next rebalance.
func (g *Guard) PreTrade(now time.Time, weights []float64, realizedVol float64) []float64 {
	g.rollover(now)

	out := make([]float64, len(weights))
	if g.halted {
		return out
	}
	copy(out, weights)

	if vt := g.cfg.VolTarget; vt.Enabled {
		scale := vt.AnnualTarget / math.Max(realizedVol, vt.MinVol)
		scale = clamp(scale, vt.ClampMin, vt.ClampMax)
		for i := range out {
			out[i] *= scale
		}
	}

	if cap := g.cfg.PerNameWeightCap; cap > 0 {
		for i := range out {
			out[i] = clamp(out[i], -cap, cap)
		}
	}

	// Redundant mode-cap checks; the mapper should already satisfy these.
	if g.cfg.InvestMax > 0 {
		sum := 0.0
		for _, w := range out {
			sum += w
		}
		if sum > g.cfg.InvestMax {
			scale := g.cfg.InvestMax / sum
			for i := range out {
				out[i] *= scale
			}
		}
	}
	if cap := g.cfg.GrossLeverageCap; cap > 0 {
		gross := 0.0
		for _, w := range out {
			gross += math.Abs(w)
		}
		if gross > cap {
			scale := cap / gross
			for i := range out {
				out[i] *= scale
			}
		}
	}
	return out
}

// OnEquity updates intra-day P&L tracking after accounting settles. When
// the realized loss since start of day exceeds the limit, the guard trips:
// every weight is zero until the next day boundary.
func (g *Guard) OnEquity(now time.Time, equity float64) {
	g.rollover(now)
	if g.startOfDayEquity == 0 {
		g.startOfDayEquity = equity
		return
	}
	if g.cfg.DailyLossLimitPct <= 0 || g.halted {
		return
	}

	lossPct := (g.startOfDayEquity - equity) / g.startOfDayEquity * 100
	if lossPct > g.cfg.DailyLossLimitPct {
		g.halted = true
	}
}

// rollover resets day state when the UTC date changes.
func (g *Guard) rollover(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if g.day.IsZero() || day.After(g.day) {
		g.day = day
		g.startOfDayEquity = 0
		g.halted = false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
