package market

import (
	"fmt"
	"time"
)

// DataGapError reports that fewer aligned bars exist than the lookback
// requires at the requested end index. Fatal to the run.
type DataGapError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("market: %s has %d aligned bars, lookback needs %d", e.Symbol, e.Have, e.Need)
}

// PortfolioVector is the portfolio snapshot attached to each observation
// window.
type PortfolioVector struct {
	CashFraction  float64
	GrossExposure float64
	Drawdown      float64
	Weights       []float64 // per symbol, panel order
}

// Window is a fixed-length observation: lookback bars per symbol ending at
// EndIndex, plus a portfolio snapshot. Created fresh each step and owned by
// that step; nothing retains a reference after the policy consumes it.
type Window struct {
	Symbols   []string
	Columns   []string
	End       time.Time
	EndIndex  int
	Bars      map[string][]Bar // oldest first, length == lookback
	Portfolio PortfolioVector
}

// Lookback is the number of bars per symbol in the window.
func (w *Window) Lookback() int {
	if len(w.Symbols) == 0 {
		return 0
	}
	return len(w.Bars[w.Symbols[0]])
}

// Provider cuts observation windows out of an aligned panel.
type Provider struct {
	panel    *Panel
	lookback int
}

// NewProvider wraps a panel with a fixed lookback.
func NewProvider(panel *Panel, lookback int) (*Provider, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("market: lookback must be >= 1, got %d", lookback)
	}
	if panel.Len() < lookback {
		return nil, &DataGapError{Symbol: panel.Symbols[0], Have: panel.Len(), Need: lookback}
	}
	return &Provider{panel: panel, lookback: lookback}, nil
}

// Panel exposes the underlying aligned grid.
func (p *Provider) Panel() *Panel { return p.panel }

// Lookback returns the configured window length.
func (p *Provider) Lookback() int { return p.lookback }

// FirstIndex is the earliest end index with a full lookback behind it.
func (p *Provider) FirstIndex() int { return p.lookback - 1 }

// LastIndex is the final aligned row.
func (p *Provider) LastIndex() int { return p.panel.Len() - 1 }

// Window returns the lookback bars ending at endIndex for every symbol.
// The portfolio vector is zero; the orchestrator fills it in.
func (p *Provider) Window(endIndex int) (*Window, error) {
	if endIndex < 0 || endIndex > p.LastIndex() {
		return nil, fmt.Errorf("market: end index %d outside panel [0,%d]", endIndex, p.LastIndex())
	}
	if endIndex+1 < p.lookback {
		return nil, &DataGapError{Symbol: p.panel.Symbols[0], Have: endIndex + 1, Need: p.lookback}
	}

	w := &Window{
		Symbols:  p.panel.Symbols,
		Columns:  p.panel.Columns,
		End:      p.panel.Times[endIndex],
		EndIndex: endIndex,
		Bars:     make(map[string][]Bar, len(p.panel.Symbols)),
	}
	for _, sym := range p.panel.Symbols {
		src := p.panel.bars[sym][endIndex+1-p.lookback : endIndex+1]
		w.Bars[sym] = append([]Bar(nil), src...)
	}
	return w, nil
}
