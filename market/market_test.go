package market

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func closeBar(sym string, day int, close float64) Bar {
	return Bar{
		Symbol: sym,
		Time:   base.Add(time.Duration(day) * 24 * time.Hour),
		Open:   close, High: close, Low: close, Close: close,
		Volume:   1000,
		Features: map[string]float64{},
	}
}

func series(sym string, closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = closeBar(sym, i, c)
	}
	return bars
}

func TestLoadCSVParsesBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AAPL.csv")
	data := `time,open,high,low,close,adj_close,volume
2024-01-02,100,102,99,101,101,5000
2024-01-03T00:00:00Z,101,103,100,102,102,6000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 5000.0, bars[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 102.0, bars[1].Close)
}

func TestLoadCSVRequiresColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,open,close\n2024-01-02,1,2\n"), 0o644))

	_, err := LoadCSV(path, "X")
	assert.Error(t, err)
}

func TestLogReturnsWarmup(t *testing.T) {
	bars := series("A", 100, 110, 99)
	require.NoError(t, ComputeFeatures(bars, []string{"log_ret"}))

	assert.True(t, math.IsNaN(bars[0].Feature("log_ret")))
	assert.InDelta(t, math.Log(1.1), bars[1].Feature("log_ret"), 1e-12)
	assert.InDelta(t, math.Log(99.0/110), bars[2].Feature("log_ret"), 1e-12)
}

func TestSMAAndEMA(t *testing.T) {
	bars := series("A", 10, 20, 30, 40)
	require.NoError(t, ComputeFeatures(bars, []string{"sma_3", "ema_3"}))

	assert.True(t, math.IsNaN(bars[1].Feature("sma_3")))
	assert.InDelta(t, 20, bars[2].Feature("sma_3"), 1e-12)
	assert.InDelta(t, 30, bars[3].Feature("sma_3"), 1e-12)

	// EMA seeds from the SMA then smooths with k=0.5.
	assert.InDelta(t, 20, bars[2].Feature("ema_3"), 1e-12)
	assert.InDelta(t, 30, bars[3].Feature("ema_3"), 1e-12)
}

func TestRollingVolWindow(t *testing.T) {
	bars := series("A", 100, 101, 100, 102, 101)
	require.NoError(t, ComputeFeatures(bars, []string{"vol_3"}))

	assert.True(t, math.IsNaN(bars[2].Feature("vol_3")))
	assert.False(t, math.IsNaN(bars[3].Feature("vol_3")))
	assert.Greater(t, bars[4].Feature("vol_3"), 0.0)
}

func TestRSIBounds(t *testing.T) {
	bars := series("A", 100, 101, 102, 103, 104, 103, 105, 104, 106, 107)
	require.NoError(t, ComputeFeatures(bars, []string{"rsi_5"}))

	for i := 5; i < len(bars); i++ {
		v := bars[i].Feature("rsi_5")
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	// Monotonic rally pegs RSI at 100.
	up := series("A", 1, 2, 3, 4, 5, 6, 7)
	require.NoError(t, ComputeFeatures(up, []string{"rsi_3"}))
	assert.Equal(t, 100.0, up[6].Feature("rsi_3"))
}

func TestComputeFeaturesRejectsUnknownSpec(t *testing.T) {
	assert.Error(t, ComputeFeatures(series("A", 1, 2), []string{"macd_12"}))
	assert.Error(t, ComputeFeatures(series("A", 1, 2), []string{"sma_0"}))
}

func TestPanelIntersectsTimestamps(t *testing.T) {
	a := series("AAA", 1, 2, 3, 4)
	b := series("BBB", 10, 20, 30) // one day shorter

	p, err := NewPanel(map[string][]Bar{"AAA": a, "BBB": b}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, p.Symbols)
	assert.Equal(t, 3, p.Len()) // day 3 exists only for AAA
	assert.Equal(t, 3.0, p.Bar("AAA", 2).Close)
	assert.Equal(t, 30.0, p.Bar("BBB", 2).Close)
}

func TestPanelDropsWarmupRows(t *testing.T) {
	a := series("AAA", 100, 101, 102, 103)
	require.NoError(t, ComputeFeatures(a, []string{"log_ret"}))

	p, err := NewPanel(map[string][]Bar{"AAA": a}, []string{"log_ret"})
	require.NoError(t, err)

	// Row 0 has a NaN log_ret and is dropped for everyone.
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 101.0, p.Bar("AAA", 0).Close)
}

func TestPanelMissingColumnError(t *testing.T) {
	a := series("AAA", 1, 2, 3)

	_, err := NewPanel(map[string][]Bar{"AAA": a}, []string{"log_ret"})
	require.Error(t, err)
	var mc *MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "AAA", mc.Symbol)
	assert.Equal(t, "log_ret", mc.Column)
}

func TestPanelKeepsFirstDuplicate(t *testing.T) {
	a := series("AAA", 1, 2)
	dup := closeBar("AAA", 1, 99) // same timestamp as a[1]
	a = append(a, dup)

	p, err := NewPanel(map[string][]Bar{"AAA": a}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 2.0, p.Bar("AAA", 1).Close)
}

func TestUsableRange(t *testing.T) {
	a := series("AAA", 1, 2, 3, 4, 5)
	p, err := NewPanel(map[string][]Bar{"AAA": a}, nil)
	require.NoError(t, err)

	r := p.UsableRange()
	assert.Equal(t, 5, r.Bars)
	assert.Equal(t, base, r.Start)
	assert.Equal(t, base.Add(4*24*time.Hour), r.End)
}

func TestProviderWindowing(t *testing.T) {
	a := series("AAA", 1, 2, 3, 4, 5)
	p, err := NewPanel(map[string][]Bar{"AAA": a}, nil)
	require.NoError(t, err)

	prov, err := NewProvider(p, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, prov.FirstIndex())
	assert.Equal(t, 4, prov.LastIndex())

	w, err := prov.Window(3)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Lookback())
	assert.Equal(t, 3, w.EndIndex)
	got := make([]float64, 0, 3)
	for _, b := range w.Bars["AAA"] {
		got = append(got, b.Close)
	}
	assert.Equal(t, []float64{2, 3, 4}, got)
}

func TestProviderDataGap(t *testing.T) {
	a := series("AAA", 1, 2)
	p, err := NewPanel(map[string][]Bar{"AAA": a}, nil)
	require.NoError(t, err)

	_, err = NewProvider(p, 5)
	require.Error(t, err)
	var gap *DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, 2, gap.Have)
	assert.Equal(t, 5, gap.Need)

	prov, err := NewProvider(p, 2)
	require.NoError(t, err)
	_, err = prov.Window(0) // only one bar behind index 0
	assert.ErrorAs(t, err, &gap)
}
