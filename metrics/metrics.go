// Package metrics derives end-of-run statistics from the ledger and
// exposes a Prometheus recorder for live run observability.
package metrics

import (
	"math"

	"github.com/stockbot/simcore/journal"
)

// RunMetrics is recomputed from the full equity and trade history at run
// end; it is reproducible from the ledger alone.
type RunMetrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	AnnualVolPct   float64 `json:"annual_vol_pct"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
}

// Compute derives run metrics from an equity series and closed trades.
// periodsPerYear annualizes the per-step return stats (252 for daily
// bars, 252*390 for minute bars).
func Compute(equity []float64, trades []journal.TradeRecord, periodsPerYear float64) RunMetrics {
	var m RunMetrics
	if len(equity) > 0 && equity[0] != 0 {
		m.TotalReturnPct = (equity[len(equity)-1]/equity[0] - 1) * 100
	}
	m.MaxDrawdownPct = maxDrawdown(equity) * 100

	rets := stepReturns(equity)
	mean, std := meanStd(rets)
	if std > 0 {
		m.Sharpe = mean / std * math.Sqrt(periodsPerYear)
	}
	m.AnnualVolPct = std * math.Sqrt(periodsPerYear) * 100

	var grossProfit, grossLoss float64
	for _, t := range trades {
		m.Trades++
		switch {
		case t.RealizedPL > 0:
			m.Wins++
			grossProfit += t.RealizedPL
		case t.RealizedPL < 0:
			m.Losses++
			grossLoss -= t.RealizedPL
		}
	}
	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	return m
}

func maxDrawdown(equity []float64) float64 {
	peak, maxDD := math.Inf(-1), 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := 1 - e/peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func stepReturns(equity []float64) []float64 {
	var rets []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 && equity[i] > 0 {
			rets = append(rets, math.Log(equity[i]/equity[i-1]))
		}
	}
	return rets
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
