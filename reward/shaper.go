// Package reward computes the per-step scalar reward from equity deltas
// and penalty terms, and detects the terminal conditions that end an
// episode early.
package reward

import "math"

// Base selects the equity term.
type Base string

const (
	// BaseDeltaNAV is (equity_t - equity_{t-1}) / equity_0.
	BaseDeltaNAV Base = "delta_nav"
	// BaseLogNAV is log(equity_t / equity_{t-1}). Preferred for
	// compounding consistency; undefined once equity is non-positive, so
	// that case terminates the episode instead of emitting NaN.
	BaseLogNAV Base = "log_nav"
)

// Terminal reports why a step ended the episode, empty when it did not.
type Terminal string

const (
	TerminalNone       Terminal = ""
	TerminalBankruptcy Terminal = "bankruptcy"
	TerminalStopOut    Terminal = "stop_out"
)

// Config holds the base-term choice and the optional penalty weights.
type Config struct {
	Base       Base
	WDrawdown  float64
	WTurnover  float64
	WVol       float64
	WLeverage  float64
	StopEqFrac float64 // terminate when equity < frac * starting equity, 0 disables
}

// Inputs are the per-step values the shaper reads. Turnover is the sum of
// absolute weight changes realized this step.
type Inputs struct {
	Equity        float64
	Drawdown      float64
	Turnover      float64
	RealizedVol   float64
	GrossExposure float64
}

// Shaper tracks previous equity and produces reward plus terminal status.
type Shaper struct {
	cfg        Config
	initial    float64
	prevEquity float64
}

// NewShaper starts from the episode's initial equity.
func NewShaper(cfg Config, initialEquity float64) *Shaper {
	return &Shaper{cfg: cfg, initial: initialEquity, prevEquity: initialEquity}
}

// Step computes reward = base - penalties and the terminal condition, if
// any. Bankruptcy short-circuits the log base so no NaN ever escapes.
func (s *Shaper) Step(in Inputs) (float64, Terminal) {
	prev := s.prevEquity
	s.prevEquity = in.Equity

	terminal := TerminalNone
	if in.Equity <= 0 || prev <= 0 {
		terminal = TerminalBankruptcy
	} else if s.cfg.StopEqFrac > 0 && in.Equity < s.cfg.StopEqFrac*s.initial {
		terminal = TerminalStopOut
	}

	var base float64
	if s.cfg.Base == BaseLogNAV && prev > 0 && in.Equity > 0 {
		base = math.Log(in.Equity / prev)
	} else if s.initial > 0 {
		base = (in.Equity - prev) / s.initial
	}

	penalty := s.cfg.WDrawdown*in.Drawdown +
		s.cfg.WTurnover*in.Turnover +
		s.cfg.WVol*in.RealizedVol +
		s.cfg.WLeverage*in.GrossExposure

	return base - penalty, terminal
}
