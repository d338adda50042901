package obs

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRejectsShapeDrift(t *testing.T) {
	n := NewNormalizer(3)

	_, err := n.Normalize([]float64{1, 2})
	require.Error(t, err)
	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Got)
	assert.Equal(t, 3, se.Want)
}

func TestWelfordMatchesBatchStatistics(t *testing.T) {
	samples := [][]float64{
		{1, 10}, {2, 20}, {3, 30}, {4, 40}, {5, 50},
	}
	n := NewNormalizer(2)
	for _, s := range samples {
		_, err := n.Normalize(s)
		require.NoError(t, err)
	}
	n.Freeze()

	// Batch stats of channel 0: mean 3, population variance 2. Channel 1
	// is the same series scaled by 10.
	out, err := n.Normalize([]float64{5, 50})
	require.NoError(t, err)
	assert.InDelta(t, (5-3)/math.Sqrt(2+Epsilon), float64(out[0]), 1e-6)
	assert.InDelta(t, (50-30)/math.Sqrt(200+Epsilon), float64(out[1]), 1e-6)
}

func TestNormalizeCentersAndScales(t *testing.T) {
	n := NewNormalizer(1)
	for _, v := range []float64{2, 4, 6, 8} {
		_, err := n.Normalize([]float64{v})
		require.NoError(t, err)
	}
	n.Freeze()

	// Stats after training: mean 5, population variance 5.
	out, err := n.Normalize([]float64{10})
	require.NoError(t, err)
	assert.InDelta(t, (10-5)/math.Sqrt(5+Epsilon), float64(out[0]), 1e-6)
}

func TestFrozenModeStopsUpdates(t *testing.T) {
	n := NewNormalizer(1)
	_, err := n.Normalize([]float64{100})
	require.NoError(t, err)
	n.Freeze()

	a, err := n.Normalize([]float64{42})
	require.NoError(t, err)
	// Feeding wildly different values must not move frozen stats.
	for i := 0; i < 50; i++ {
		_, err = n.Normalize([]float64{-1e6})
		require.NoError(t, err)
	}
	b, err := n.Normalize([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestFirstSampleDoesNotDivideByZero(t *testing.T) {
	n := NewNormalizer(2)
	out, err := n.Normalize([]float64{7, -3})
	require.NoError(t, err)
	for _, v := range out {
		assert.False(t, math.IsNaN(float64(v)))
		assert.False(t, math.IsInf(float64(v), 0))
	}
}

func TestSaveAndLoadFrozenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")

	n := NewNormalizer(2)
	for _, v := range [][]float64{{1, 5}, {2, 6}, {3, 7}} {
		_, err := n.Normalize(v)
		require.NoError(t, err)
	}
	require.NoError(t, n.Save(path))

	loaded, err := LoadFrozen(path)
	require.NoError(t, err)
	assert.Equal(t, ModeFrozen, loaded.Mode())
	assert.Equal(t, 2, loaded.Dim())

	n.Freeze()
	want, err := n.Normalize([]float64{2.5, 6.5})
	require.NoError(t, err)
	got, err := loaded.Normalize([]float64{2.5, 6.5})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFrozenRejectsInconsistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dim":3,"count":1,"mean":[0],"m2":[0]}`), 0o644))

	_, err := LoadFrozen(path)
	assert.Error(t, err)
}

func TestRollingWindowStats(t *testing.T) {
	r := NewRolling(3)
	assert.Equal(t, 0.0, r.Std())

	r.Push(1)
	r.Push(2)
	r.Push(3)
	assert.InDelta(t, 2, r.Mean(), 1e-12)

	// Window slides: 1 falls out.
	r.Push(4)
	assert.Equal(t, 3, r.Count())
	assert.InDelta(t, 3, r.Mean(), 1e-12)
	assert.InDelta(t, 1, r.Std(), 1e-12) // sample std of {2,3,4}
	assert.InDelta(t, math.Sqrt(252), r.Annualized(252), 1e-9)
}
