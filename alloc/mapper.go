// Package alloc maps raw policy outputs to target portfolio weights under
// the configured allocation regime and trading-friction caps.
package alloc

import (
	"fmt"
	"math"
)

// Mode selects the allocation regime.
type Mode string

const (
	// ModeSimplexCash produces non-negative weights summing to at most
	// invest_max; the remainder is cash. Long-only by construction, which
	// is an intentional limitation: the book cannot profit in a bear
	// market beyond sitting in cash.
	ModeSimplexCash Mode = "simplex_cash"
	// ModeTanhLeverage produces tanh-bounded signed weights rescaled so
	// gross leverage never exceeds gross_leverage_cap. Shorting allowed.
	ModeTanhLeverage Mode = "tanh_leverage"
)

// Config carries the mapping-mode knobs. Validation happens at config
// load; the mapper trusts these values.
type Config struct {
	Mode             Mode
	InvestMax        float64 // simplex_cash: cap on sum(weights), in [0,1]
	GrossLeverageCap float64 // tanh_leverage: cap on sum(|weights|)
	MaxStepChange    float64 // per-asset turnover cap per step, 0 disables
	RebalanceEps     float64 // suppress changes smaller than this
	PerNameCap       float64 // cap on a single |weight|, 0 disables
}

// Mapper converts a raw policy vector into capped target weights.
type Mapper struct {
	cfg Config
	n   int
}

// NewMapper builds a mapper for a fixed asset count.
func NewMapper(cfg Config, numAssets int) (*Mapper, error) {
	if numAssets < 1 {
		return nil, fmt.Errorf("alloc: need at least one asset")
	}
	switch cfg.Mode {
	case ModeSimplexCash, ModeTanhLeverage:
	default:
		return nil, fmt.Errorf("alloc: unknown mapping mode %q", cfg.Mode)
	}
	return &Mapper{cfg: cfg, n: numAssets}, nil
}

// NumAssets returns the weight vector length.
func (m *Mapper) NumAssets() int { return m.n }

// InputDim is the raw vector length the policy must emit: N+1 in
// simplex_cash (the extra component gates cash), N in tanh_leverage.
func (m *Mapper) InputDim() int {
	if m.cfg.Mode == ModeSimplexCash {
		return m.n + 1
	}
	return m.n
}

// Map turns raw policy logits into target weights, then applies the
// turnover cap, the rebalance threshold, and the per-name cap against the
// previous step's realized weights. The mode's global cap is re-enforced
// last by shrinking this step's weight deltas, never by violating the
// turnover cap.
func (m *Mapper) Map(raw, prev []float64) ([]float64, error) {
	if len(raw) != m.InputDim() {
		return nil, fmt.Errorf("alloc: raw vector has %d components, want %d", len(raw), m.InputDim())
	}
	if len(prev) != m.n {
		return nil, fmt.Errorf("alloc: prev weights have %d components, want %d", len(prev), m.n)
	}

	var target []float64
	switch m.cfg.Mode {
	case ModeSimplexCash:
		target = m.mapSimplexCash(raw)
	case ModeTanhLeverage:
		target = m.mapTanhLeverage(raw)
	}

	w := make([]float64, m.n)
	for i := range w {
		d := target[i] - prev[i]
		if m.cfg.MaxStepChange > 0 {
			d = clamp(d, -m.cfg.MaxStepChange, m.cfg.MaxStepChange)
		}
		if math.Abs(d) < m.cfg.RebalanceEps {
			d = 0
		}
		w[i] = prev[i] + d
		if m.cfg.PerNameCap > 0 {
			// prev already honors the cap, so clipping keeps w between
			// prev and target and cannot widen the step delta.
			w[i] = clamp(w[i], -m.cfg.PerNameCap, m.cfg.PerNameCap)
		}
	}

	switch m.cfg.Mode {
	case ModeSimplexCash:
		m.enforceInvestMax(w, prev)
	case ModeTanhLeverage:
		m.enforceGrossCap(w, prev)
	}
	return w, nil
}

func (m *Mapper) mapSimplexCash(raw []float64) []float64 {
	logits := raw[:m.n]
	gate := sigmoid(raw[m.n])

	w := softmax(logits)
	for i := range w {
		w[i] *= gate * m.cfg.InvestMax
	}
	return w
}

func (m *Mapper) mapTanhLeverage(raw []float64) []float64 {
	cap := m.cfg.GrossLeverageCap
	w := make([]float64, m.n)
	gross := 0.0
	for i, v := range raw {
		w[i] = math.Tanh(v) * cap
		gross += math.Abs(w[i])
	}
	if gross > cap {
		scale := cap / gross
		for i := range w {
			w[i] *= scale
		}
	}
	return w
}

// enforceInvestMax shrinks this step's positive deltas until the sum fits
// under invest_max again. prev sums under the cap, so a solution with
// non-negative shrink always exists.
func (m *Mapper) enforceInvestMax(w, prev []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= m.cfg.InvestMax {
		return
	}

	base, sumPos := 0.0, 0.0
	for i := range w {
		d := w[i] - prev[i]
		if d > 0 {
			sumPos += d
			base += prev[i]
		} else {
			base += w[i]
		}
	}
	s := 0.0
	if sumPos > 0 {
		s = clamp((m.cfg.InvestMax-base)/sumPos, 0, 1)
	}
	for i := range w {
		if d := w[i] - prev[i]; d > 0 {
			w[i] = prev[i] + s*d
		}
	}
}

// enforceGrossCap bisects a uniform delta shrink factor until gross
// leverage fits under the cap. gross(prev) <= cap, so s=0 always works.
func (m *Mapper) enforceGrossCap(w, prev []float64) {
	cap := m.cfg.GrossLeverageCap
	if grossAt(w, prev, 1) <= cap {
		return
	}

	lo, hi := 0.0, 1.0
	for iter := 0; iter < 60; iter++ {
		mid := (lo + hi) / 2
		if grossAt(w, prev, mid) <= cap {
			lo = mid
		} else {
			hi = mid
		}
	}
	for i := range w {
		w[i] = prev[i] + lo*(w[i]-prev[i])
	}
}

func grossAt(w, prev []float64, s float64) float64 {
	g := 0.0
	for i := range w {
		g += math.Abs(prev[i] + s*(w[i]-prev[i]))
	}
	return g
}

func softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
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
