package reward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNAVBase(t *testing.T) {
	s := NewShaper(Config{Base: BaseLogNAV}, 100_000)

	r, term := s.Step(Inputs{Equity: 101_000})
	assert.Equal(t, TerminalNone, term)
	assert.InDelta(t, math.Log(1.01), r, 1e-12)

	r, term = s.Step(Inputs{Equity: 99_990})
	assert.Equal(t, TerminalNone, term)
	assert.InDelta(t, math.Log(99_990.0/101_000.0), r, 1e-12)
}

func TestDeltaNAVBase(t *testing.T) {
	s := NewShaper(Config{Base: BaseDeltaNAV}, 100_000)

	r, _ := s.Step(Inputs{Equity: 101_000})
	assert.InDelta(t, 0.01, r, 1e-12)

	r, _ = s.Step(Inputs{Equity: 100_500})
	assert.InDelta(t, -0.005, r, 1e-12)
}

func TestBankruptcyShortCircuitsWithoutNaN(t *testing.T) {
	s := NewShaper(Config{Base: BaseLogNAV}, 100_000)

	r, term := s.Step(Inputs{Equity: -250})
	assert.Equal(t, TerminalBankruptcy, term)
	require.False(t, math.IsNaN(r))
	require.False(t, math.IsInf(r, 0))
	// Falls back to the delta base, heavily negative.
	assert.InDelta(t, (-250-100_000.0)/100_000.0, r, 1e-12)
}

func TestZeroEquityIsBankruptcy(t *testing.T) {
	s := NewShaper(Config{Base: BaseLogNAV}, 100_000)
	r, term := s.Step(Inputs{Equity: 0})
	assert.Equal(t, TerminalBankruptcy, term)
	assert.False(t, math.IsNaN(r))
}

func TestStopOutFiresBelowFraction(t *testing.T) {
	s := NewShaper(Config{Base: BaseLogNAV, StopEqFrac: 0.8}, 100_000)

	_, term := s.Step(Inputs{Equity: 85_000})
	assert.Equal(t, TerminalNone, term)

	_, term = s.Step(Inputs{Equity: 79_999})
	assert.Equal(t, TerminalStopOut, term)
}

func TestStopOutDisabledAtZero(t *testing.T) {
	s := NewShaper(Config{Base: BaseLogNAV}, 100_000)
	_, term := s.Step(Inputs{Equity: 1}) // deep loss but still positive
	assert.Equal(t, TerminalNone, term)
}

func TestPenaltiesSubtractFromBase(t *testing.T) {
	cfg := Config{
		Base:      BaseLogNAV,
		WDrawdown: 0.5,
		WTurnover: 0.1,
		WVol:      0.2,
		WLeverage: 0.05,
	}
	s := NewShaper(cfg, 100_000)

	in := Inputs{
		Equity:        100_000, // flat step, base 0
		Drawdown:      0.10,
		Turnover:      0.30,
		RealizedVol:   0.25,
		GrossExposure: 1.2,
	}
	r, term := s.Step(in)
	assert.Equal(t, TerminalNone, term)

	want := -(0.5*0.10 + 0.1*0.30 + 0.2*0.25 + 0.05*1.2)
	assert.InDelta(t, want, r, 1e-12)
}

func TestRewardSequenceIsDeterministic(t *testing.T) {
	run := func() []float64 {
		s := NewShaper(Config{Base: BaseLogNAV, WTurnover: 0.01}, 50_000)
		var out []float64
		for _, eq := range []float64{50_500, 50_200, 51_000, 49_900} {
			r, _ := s.Step(Inputs{Equity: eq, Turnover: 0.1})
			out = append(out, r)
		}
		return out
	}
	assert.Equal(t, run(), run())
}
