package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbot/simcore/journal"
)

func TestComputeTotalReturnAndDrawdown(t *testing.T) {
	equity := []float64{100, 110, 99, 121}
	m := Compute(equity, nil, 252)

	assert.InDelta(t, 21, m.TotalReturnPct, 1e-9)
	// Peak 110, trough 99.
	assert.InDelta(t, (1-99.0/110.0)*100, m.MaxDrawdownPct, 1e-9)
}

func TestComputeTradeStats(t *testing.T) {
	trades := []journal.TradeRecord{
		{RealizedPL: 100},
		{RealizedPL: -40},
		{RealizedPL: 60},
		{RealizedPL: 0},
	}
	m := Compute([]float64{100, 100}, trades, 252)

	assert.Equal(t, 4, m.Trades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 0.5, m.WinRate, 1e-12)
	assert.InDelta(t, 160.0/40.0, m.ProfitFactor, 1e-12)
}

func TestComputeHandlesDegenerateInputs(t *testing.T) {
	m := Compute(nil, nil, 252)
	assert.Equal(t, 0.0, m.TotalReturnPct)
	assert.Equal(t, 0.0, m.Sharpe)

	// Flat equity: zero vol, Sharpe stays zero rather than dividing by it.
	m = Compute([]float64{100, 100, 100}, nil, 252)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.AnnualVolPct)
}

func TestSharpeAnnualizes(t *testing.T) {
	// Alternating +1%/-1% steps: mean ~0, so Sharpe is tiny; scale the
	// returns up and the sign must follow the drift.
	up := []float64{100, 101, 102.01, 103.0301}
	m := Compute(up, nil, 252)
	assert.Greater(t, m.Sharpe, 0.0)
	assert.False(t, math.IsNaN(m.Sharpe))
}

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordFill("AAPL")
	r.RecordFill("AAPL")
	r.RecordFill("MSFT")
	r.RecordHalt()
	r.RecordRunEnd("succeeded")
	r.RecordStep("r1", 100_500, 0.002)

	require.InDelta(t, 2, testutil.ToFloat64(r.fillsTotal.WithLabelValues("AAPL")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.fillsTotal.WithLabelValues("MSFT")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.stepsTotal), 0)

	expected := `
# HELP simcore_risk_halts_total Daily-loss halts triggered
# TYPE simcore_risk_halts_total counter
simcore_risk_halts_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "simcore_risk_halts_total"))
}
