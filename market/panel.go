package market

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// MissingColumnError reports a required indicator column absent from a
// symbol's series after feature computation.
type MissingColumnError struct {
	Symbol string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("market: symbol %s has no column %q", e.Symbol, e.Column)
}

// Range is the usable span of a panel after alignment and NaN-row drops.
// Can be narrower than the configured start/end, so callers must read it
// back rather than trust their request.
type Range struct {
	Start time.Time
	End   time.Time
	Bars  int
}

// Panel is an aligned multi-symbol bar grid. The common time index is the
// intersection of the symbols' timestamps; any row where a symbol is
// missing a required feature is dropped for all symbols.
type Panel struct {
	Symbols []string
	Columns []string // required feature columns, fixed order
	Times   []time.Time

	bars map[string][]Bar // indexed in lockstep with Times
}

// NewPanel aligns the per-symbol series over the required columns.
func NewPanel(series map[string][]Bar, columns []string) (*Panel, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("market: no symbols")
	}

	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	// A required column must exist somewhere in every series; a column
	// that is NaN everywhere was never computed.
	for _, sym := range symbols {
		for _, col := range columns {
			if !columnPresent(series[sym], col) {
				return nil, &MissingColumnError{Symbol: sym, Column: col}
			}
		}
	}

	bySymbol := make(map[string]map[int64]Bar, len(symbols))
	counts := map[int64]int{}
	for _, sym := range symbols {
		m := make(map[int64]Bar, len(series[sym]))
		for _, b := range series[sym] {
			ts := b.Time.UTC().Unix()
			if _, dup := m[ts]; dup {
				continue // keep-first on duplicate timestamps
			}
			m[ts] = b
			counts[ts]++
		}
		bySymbol[sym] = m
	}

	var stamps []int64
	for ts, n := range counts {
		if n != len(symbols) {
			continue
		}
		if rowComplete(bySymbol, symbols, columns, ts) {
			stamps = append(stamps, ts)
		}
	}
	if len(stamps) == 0 {
		return nil, fmt.Errorf("market: no aligned rows across %d symbols", len(symbols))
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	p := &Panel{
		Symbols: symbols,
		Columns: append([]string(nil), columns...),
		Times:   make([]time.Time, len(stamps)),
		bars:    make(map[string][]Bar, len(symbols)),
	}
	for _, sym := range symbols {
		p.bars[sym] = make([]Bar, len(stamps))
	}
	for i, ts := range stamps {
		p.Times[i] = time.Unix(ts, 0).UTC()
		for _, sym := range symbols {
			p.bars[sym][i] = bySymbol[sym][ts]
		}
	}
	return p, nil
}

func columnPresent(bars []Bar, col string) bool {
	for _, b := range bars {
		if v, ok := b.Features[col]; ok && !math.IsNaN(v) {
			return true
		}
	}
	return false
}

func rowComplete(bySymbol map[string]map[int64]Bar, symbols, columns []string, ts int64) bool {
	for _, sym := range symbols {
		b := bySymbol[sym][ts]
		if b.Volume < 0 || math.IsNaN(b.Close) {
			return false
		}
		for _, col := range columns {
			if v, ok := b.Features[col]; !ok || math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

// Len is the number of aligned rows.
func (p *Panel) Len() int { return len(p.Times) }

// UsableRange reports the final aligned span. Feature warmup and
// intersection can shrink this well below the ingested range.
func (p *Panel) UsableRange() Range {
	if len(p.Times) == 0 {
		return Range{}
	}
	return Range{Start: p.Times[0], End: p.Times[len(p.Times)-1], Bars: len(p.Times)}
}

// Bar returns the bar for symbol at aligned row idx.
func (p *Panel) Bar(symbol string, idx int) Bar {
	return p.bars[symbol][idx]
}

// Closes returns the close price per symbol at row idx, in Symbols order.
func (p *Panel) Closes(idx int) []float64 {
	out := make([]float64, len(p.Symbols))
	for i, sym := range p.Symbols {
		out[i] = p.bars[sym][idx].Close
	}
	return out
}
