package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

func TestDailyLossLimitHaltsAndFlattens(t *testing.T) {
	g := NewGuard(Config{DailyLossLimitPct: 1.0})

	g.OnEquity(monday, 100_000) // start-of-day anchor
	assert.False(t, g.Halted())

	g.OnEquity(monday.Add(time.Hour), 99_100) // -0.9%, inside the limit
	assert.False(t, g.Halted())

	g.OnEquity(monday.Add(2*time.Hour), 98_900) // -1.1%, tripped
	require.True(t, g.Halted())

	// Every subsequent pre-trade flattens the book.
	w := g.PreTrade(monday.Add(3*time.Hour), []float64{0.4, -0.2}, 0)
	assert.Equal(t, []float64{0, 0}, w)
}

func TestHaltClearsAtNextUTCDay(t *testing.T) {
	g := NewGuard(Config{DailyLossLimitPct: 1.0})
	g.OnEquity(monday, 100_000)
	g.OnEquity(monday.Add(time.Hour), 95_000)
	require.True(t, g.Halted())

	// Still halted at the end of the same UTC day.
	g.PreTrade(monday.Add(9*time.Hour), []float64{0.5}, 0)
	assert.True(t, g.Halted())

	tuesday := monday.Add(24 * time.Hour)
	w := g.PreTrade(tuesday, []float64{0.5}, 0)
	assert.False(t, g.Halted())
	assert.Equal(t, []float64{0.5}, w)

	// The new day re-anchors start-of-day equity at the next update.
	g.OnEquity(tuesday, 95_000)
	g.OnEquity(tuesday.Add(time.Hour), 94_500) // -0.53%, fine
	assert.False(t, g.Halted())
}

func TestLossLimitDisabledAtZero(t *testing.T) {
	g := NewGuard(Config{})
	g.OnEquity(monday, 100_000)
	g.OnEquity(monday.Add(time.Hour), 50_000)
	assert.False(t, g.Halted())
}

func TestPerNameCapClipsWithoutRenormalizing(t *testing.T) {
	g := NewGuard(Config{PerNameWeightCap: 0.25})

	w := g.PreTrade(monday, []float64{0.4, -0.4, 0.1}, 0)
	assert.InDelta(t, 0.25, w[0], 1e-12)
	assert.InDelta(t, -0.25, w[1], 1e-12)
	assert.InDelta(t, 0.1, w[2], 1e-12) // untouched names keep their weight
}

func TestVolTargetScalesDown(t *testing.T) {
	g := NewGuard(Config{VolTarget: VolTargetConfig{
		Enabled:      true,
		AnnualTarget: 0.10,
		MinVol:       0.01,
		ClampMin:     0.25,
		ClampMax:     2.0,
	}})

	// Realized vol double the target: halve exposure.
	w := g.PreTrade(monday, []float64{0.6}, 0.20)
	assert.InDelta(t, 0.3, w[0], 1e-12)
}

func TestVolTargetClampBounds(t *testing.T) {
	g := NewGuard(Config{VolTarget: VolTargetConfig{
		Enabled:      true,
		AnnualTarget: 0.10,
		MinVol:       0.01,
		ClampMin:     0.5,
		ClampMax:     1.5,
	}})

	// Tiny realized vol wants a huge scale-up; the clamp caps it.
	w := g.PreTrade(monday, []float64{0.4}, 0.02)
	assert.InDelta(t, 0.4*1.5, w[0], 1e-12)

	// Huge realized vol wants near-zero; the floor holds.
	w = g.PreTrade(monday, []float64{0.4}, 5.0)
	assert.InDelta(t, 0.4*0.5, w[0], 1e-12)
}

func TestVolTargetMinVolGuardsDivision(t *testing.T) {
	g := NewGuard(Config{VolTarget: VolTargetConfig{
		Enabled:      true,
		AnnualTarget: 0.10,
		MinVol:       0.05,
		ClampMin:     0.1,
		ClampMax:     3.0,
	}})

	// Zero realized vol uses the floor: scale = 0.10/0.05 = 2.
	w := g.PreTrade(monday, []float64{0.2}, 0)
	assert.InDelta(t, 0.4, w[0], 1e-12)
}

func TestModeCapReEnforcedAsBackstop(t *testing.T) {
	g := NewGuard(Config{InvestMax: 0.5})
	w := g.PreTrade(monday, []float64{0.4, 0.4}, 0)
	assert.InDelta(t, 0.5, w[0]+w[1], 1e-9)

	g = NewGuard(Config{GrossLeverageCap: 1.0})
	w = g.PreTrade(monday, []float64{0.8, -0.8}, 0)
	assert.InDelta(t, 1.0, abs(w[0])+abs(w[1]), 1e-9)
}

func TestPreTradeDoesNotMutateInput(t *testing.T) {
	g := NewGuard(Config{PerNameWeightCap: 0.1})
	in := []float64{0.5, -0.5}
	_ = g.PreTrade(monday, in, 0)
	assert.Equal(t, []float64{0.5, -0.5}, in)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
