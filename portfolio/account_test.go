package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(step int) time.Time { return t0.Add(time.Duration(step) * 24 * time.Hour) }

func TestApplyFillOpensPosition(t *testing.T) {
	a := NewAccount(10_000)

	closed := a.ApplyFill("AAPL", 10, 100, 1, 0.5, at(0), 0)
	assert.Empty(t, closed)

	pos := a.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.Equal(t, 10.0, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgCost)
	assert.InDelta(t, 10_000-10*100-1.5, a.Cash, 1e-12)

	a.MarkToMarket(map[string]float64{"AAPL": 100})
	require.NoError(t, a.Reconcile())
}

func TestFIFOClosesOldestLotFirst(t *testing.T) {
	a := NewAccount(100_000)

	a.ApplyFill("AAPL", 10, 100, 0, 0, at(0), 0)
	a.ApplyFill("AAPL", 10, 110, 0, 0, at(1), 1)

	// Selling 15 consumes the whole 100-lot and a third of the 110-lot.
	closed := a.ApplyFill("AAPL", -15, 120, 0, 0, at(2), 2)
	require.Len(t, closed, 2)

	assert.Equal(t, 10.0, closed[0].Qty)
	assert.Equal(t, 100.0, closed[0].EntryPrice)
	assert.Equal(t, 120.0, closed[0].ExitPrice)
	assert.InDelta(t, 200, closed[0].RealizedPL, 1e-12)
	assert.Equal(t, 0, closed[0].EntryStep)
	assert.Equal(t, 2, closed[0].ExitStep)

	assert.Equal(t, 5.0, closed[1].Qty)
	assert.Equal(t, 110.0, closed[1].EntryPrice)
	assert.InDelta(t, 50, closed[1].RealizedPL, 1e-12)

	pos := a.Positions["AAPL"]
	assert.Equal(t, 5.0, pos.Qty)
	assert.Equal(t, 110.0, pos.AvgCost)
	assert.InDelta(t, 250, a.RealizedPnL, 1e-12)

	a.MarkToMarket(map[string]float64{"AAPL": 120})
	require.NoError(t, a.Reconcile())
}

func TestReversalClosesAndReopens(t *testing.T) {
	a := NewAccount(100_000)

	a.ApplyFill("ES", 10, 50, 0, 0, at(0), 0)
	closed := a.ApplyFill("ES", -25, 60, 0, 0, at(1), 1)
	require.Len(t, closed, 1)
	assert.InDelta(t, 100, closed[0].RealizedPL, 1e-12)

	// The surviving 15 shorts open a fresh lot at the fill price.
	pos := a.Positions["ES"]
	assert.Equal(t, -15.0, pos.Qty)
	assert.Equal(t, 60.0, pos.AvgCost)

	a.MarkToMarket(map[string]float64{"ES": 60})
	require.NoError(t, a.Reconcile())
}

func TestShortPositionProfitsOnDecline(t *testing.T) {
	a := NewAccount(100_000)

	a.ApplyFill("QQQ", -10, 200, 0, 0, at(0), 0)
	a.MarkToMarket(map[string]float64{"QQQ": 180})

	assert.InDelta(t, 200, a.UnrealizedPnL(), 1e-12)
	assert.InDelta(t, 100_200, a.Equity(), 1e-9)
	require.NoError(t, a.Reconcile())

	closed := a.ApplyFill("QQQ", 10, 180, 0, 0, at(1), 1)
	require.Len(t, closed, 1)
	assert.InDelta(t, 200, closed[0].RealizedPL, 1e-12)
	assert.Equal(t, 0.0, a.Positions["QQQ"].Qty)
}

func TestCostsReduceEquityAndReconcile(t *testing.T) {
	a := NewAccount(10_000)

	a.ApplyFill("AAPL", 10, 100, 2.5, 1.0, at(0), 0)
	a.MarkToMarket(map[string]float64{"AAPL": 100})

	assert.InDelta(t, 10_000-3.5, a.Equity(), 1e-9)
	require.NoError(t, a.Reconcile())
}

func TestMakerRebateIsNegativeFee(t *testing.T) {
	a := NewAccount(10_000)

	a.ApplyFill("AAPL", 10, 100, 0, -0.25, at(0), 0)
	a.MarkToMarket(map[string]float64{"AAPL": 100})

	assert.InDelta(t, 10_000.25, a.Equity(), 1e-9)
	require.NoError(t, a.Reconcile())
}

func TestHighWaterMarkIsMonotonic(t *testing.T) {
	a := NewAccount(10_000)
	a.ApplyFill("AAPL", 100, 100, 0, 0, at(0), 0)

	a.MarkToMarket(map[string]float64{"AAPL": 110})
	assert.InDelta(t, 11_000, a.HighWaterMark, 1e-9)

	a.MarkToMarket(map[string]float64{"AAPL": 90})
	assert.InDelta(t, 11_000, a.HighWaterMark, 1e-9)
	assert.InDelta(t, 1-9_000.0/11_000.0, a.Drawdown(), 1e-12)

	a.MarkToMarket(map[string]float64{"AAPL": 120})
	assert.InDelta(t, 12_000, a.HighWaterMark, 1e-9)
	assert.Equal(t, 0.0, a.Drawdown())
}

func TestDrawdownNeverNegative(t *testing.T) {
	a := NewAccount(10_000)
	a.MarkToMarket(nil)
	assert.Equal(t, 0.0, a.Drawdown())
}

func TestWeightsAndExposure(t *testing.T) {
	a := NewAccount(10_000)
	a.ApplyFill("AAPL", 20, 100, 0, 0, at(0), 0) // 2000 notional
	a.ApplyFill("MSFT", -10, 300, 0, 0, at(0), 0)
	a.MarkToMarket(map[string]float64{"AAPL": 100, "MSFT": 300})

	w := a.Weights([]string{"AAPL", "MSFT"})
	assert.InDelta(t, 2_000.0/10_000.0, w[0], 1e-12)
	assert.InDelta(t, -3_000.0/10_000.0, w[1], 1e-12)
	assert.InDelta(t, 0.5, a.GrossExposure(), 1e-12)
	assert.InDelta(t, 1.1, a.CashFraction(), 1e-12) // short sale credit
}

func TestMarkKeepsLastPriceWhenAbsent(t *testing.T) {
	a := NewAccount(10_000)
	a.ApplyFill("AAPL", 10, 100, 0, 0, at(0), 0)
	a.MarkToMarket(map[string]float64{"AAPL": 110})
	eq := a.MarkToMarket(map[string]float64{})
	assert.InDelta(t, 10_100, eq, 1e-9)
	assert.Equal(t, 110.0, a.Positions["AAPL"].LastMark)
}

func TestReconcileDetectsCorruption(t *testing.T) {
	a := NewAccount(10_000)
	a.ApplyFill("AAPL", 10, 100, 0, 0, at(0), 0)
	a.MarkToMarket(map[string]float64{"AAPL": 100})
	require.NoError(t, a.Reconcile())

	a.Cash += 500 // simulate a booking bug
	err := a.Reconcile()
	require.Error(t, err)
	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)
}

func TestEquityHistoryAppendsPerMark(t *testing.T) {
	a := NewAccount(10_000)
	a.MarkToMarket(nil)
	a.MarkToMarket(nil)
	assert.Len(t, a.EquityHistory, 2)
}
