// Package config loads and validates the immutable per-run configuration.
// Defaults are applied once, before validation; nothing merges defaults at
// read time. A validated Config never changes during a run.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stockbot/simcore/pkg/logging"
)

// Config is the full episode configuration snapshot.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Data      DataConfig      `yaml:"data"`
	Mapping   MappingConfig   `yaml:"mapping"`
	Execution ExecutionConfig `yaml:"execution"`
	Reward    RewardConfig    `yaml:"reward"`
	Guards    GuardConfig     `yaml:"guards"`
	Account   AccountConfig   `yaml:"account"`
	Train     TrainConfig     `yaml:"train"`
	Journal   JournalConfig   `yaml:"journal"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   logging.Config  `yaml:"logging"`
}

// RunConfig selects the dataset slice and episode length.
type RunConfig struct {
	Symbols        []string `yaml:"symbols" validate:"min=1,dive,required"`
	Interval       string   `yaml:"interval" default:"1d"`
	Lookback       int      `yaml:"lookback" default:"30" validate:"gte=1"`
	Horizon        int      `yaml:"horizon" default:"0" validate:"gte=0"` // 0 runs to data exhaustion
	PeriodsPerYear float64  `yaml:"periods_per_year" default:"252" validate:"gt=0"`
}

// DataConfig points at the bar files and names the derived features.
type DataConfig struct {
	Dir      string   `yaml:"dir" validate:"required"`
	Features []string `yaml:"features" default:"[\"log_ret\",\"vol_20\"]"`
}

// MappingConfig mirrors alloc.Config.
type MappingConfig struct {
	Mode             string  `yaml:"mode" default:"simplex_cash" validate:"oneof=simplex_cash tanh_leverage"`
	InvestMax        float64 `yaml:"invest_max" default:"1.0" validate:"gte=0,lte=1"`
	GrossLeverageCap float64 `yaml:"gross_leverage_cap" default:"1.5" validate:"gt=0"`
	MaxStepChange    float64 `yaml:"max_step_change" default:"0.1" validate:"gte=0,lte=1"`
	RebalanceEps     float64 `yaml:"rebalance_eps" default:"0.002" validate:"gte=0"`
}

// ExecutionConfig mirrors execution.Config.
type ExecutionConfig struct {
	FillPolicy         string  `yaml:"fill_policy" default:"next_open" validate:"oneof=next_open vwap_window"`
	VWAPBars           int     `yaml:"vwap_bars" default:"5" validate:"gte=1"`
	UseLimitOrders     bool    `yaml:"use_limit_orders"`
	LimitOffsetBps     float64 `yaml:"limit_offset_bps" default:"0" validate:"gte=0"`
	CommissionPerShare float64 `yaml:"commission_per_share" default:"0" validate:"gte=0"`
	TakerFeeBps        float64 `yaml:"taker_fee_bps" default:"1" validate:"gte=0"`
	MakerRebateBps     float64 `yaml:"maker_rebate_bps" default:"0" validate:"gte=0"`
	HalfSpreadBps      float64 `yaml:"half_spread_bps" default:"2" validate:"gte=0"`
	ImpactK            float64 `yaml:"impact_k" default:"10" validate:"gte=0"`
	MaxParticipation   float64 `yaml:"max_participation" default:"0.1" validate:"gt=0,lte=1"`
}

// RewardConfig mirrors reward.Config.
type RewardConfig struct {
	Base       string  `yaml:"base" default:"log_nav" validate:"oneof=delta_nav log_nav"`
	WDrawdown  float64 `yaml:"w_drawdown" default:"0" validate:"gte=0"`
	WTurnover  float64 `yaml:"w_turnover" default:"0" validate:"gte=0"`
	WVol       float64 `yaml:"w_vol" default:"0" validate:"gte=0"`
	WLeverage  float64 `yaml:"w_leverage" default:"0" validate:"gte=0"`
	VolWindow  int     `yaml:"vol_window" default:"20" validate:"gte=2"`
	StopEqFrac float64 `yaml:"stop_eq_frac" default:"0" validate:"gte=0,lt=1"`
}

// GuardConfig mirrors risk.Config.
type GuardConfig struct {
	PerNameWeightCap  float64         `yaml:"per_name_weight_cap" default:"0" validate:"gte=0"`
	DailyLossLimitPct float64         `yaml:"daily_loss_limit_pct" default:"0" validate:"gte=0"`
	VolTarget         VolTargetConfig `yaml:"vol_target"`
}

// VolTargetConfig mirrors risk.VolTargetConfig.
type VolTargetConfig struct {
	Enabled      bool    `yaml:"enabled"`
	AnnualTarget float64 `yaml:"annual_target" default:"0.15" validate:"gte=0"`
	MinVol       float64 `yaml:"min_vol" default:"0.01" validate:"gte=0"`
	Clamp        Clamp   `yaml:"clamp"`
}

// Clamp bounds the vol-target scalar.
type Clamp struct {
	Min float64 `yaml:"min" validate:"gte=0"`
	Max float64 `yaml:"max" validate:"gte=0"`
}

// AccountConfig seeds the portfolio.
type AccountConfig struct {
	InitialCash float64 `yaml:"initial_cash" default:"100000" validate:"gt=0"`
}

// TrainConfig is pass-through for the external training loop; this core
// only checks internal consistency.
type TrainConfig struct {
	NSteps      int     `yaml:"n_steps" default:"2048" validate:"gte=1"`
	BatchSize   int     `yaml:"batch_size" default:"64" validate:"gte=1"`
	Gamma       float64 `yaml:"gamma" default:"0.99" validate:"gt=0,lte=1"`
	StatsPath   string  `yaml:"stats_path"`   // save normalizer stats here after a train run
	FrozenStats string  `yaml:"frozen_stats"` // load frozen stats for evaluation
}

// JournalConfig selects the artifact backend.
type JournalConfig struct {
	Type   string `yaml:"type" default:"sqlite" validate:"oneof=csv sqlite memory"`
	Dir    string `yaml:"dir" default:"./artifacts"`
	DBPath string `yaml:"db_path" default:"./runs.sqlite"`
}

// TelemetryConfig sizes the snapshot hub.
type TelemetryConfig struct {
	Buffer int `yaml:"buffer" default:"256" validate:"gte=1"`
}

// VolTargetClampError is the specific rejection for a clamp pair that
// would silently zero all exposure.
type VolTargetClampError struct {
	Min float64
	Max float64
}

func (e *VolTargetClampError) Error() string {
	return fmt.Sprintf("config: vol_target clamp [%g, %g] would zero all exposure", e.Min, e.Max)
}

// Load reads YAML, applies defaults, runs tag validation and then the
// cross-field rules. Everything here happens before any simulation work.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(b)
}

// Parse is Load for in-memory bytes.
func Parse(b []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with every default applied and no
// symbols; callers must still fill the required fields.
func Default() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

// Validate holds the cross-field rules the struct tags cannot express.
func (c *Config) Validate() error {
	if vt := c.Guards.VolTarget; vt.Enabled {
		if vt.Clamp.Min == 0 && vt.Clamp.Max == 0 {
			return &VolTargetClampError{Min: vt.Clamp.Min, Max: vt.Clamp.Max}
		}
		if vt.Clamp.Min > vt.Clamp.Max {
			return fmt.Errorf("config: vol_target clamp min %g > max %g", vt.Clamp.Min, vt.Clamp.Max)
		}
	}

	if c.Mapping.Mode == "tanh_leverage" && c.Mapping.GrossLeverageCap <= 1.0 {
		return fmt.Errorf("config: tanh_leverage requires gross_leverage_cap > 1.0, got %g", c.Mapping.GrossLeverageCap)
	}

	if c.Train.NSteps%c.Train.BatchSize != 0 {
		return fmt.Errorf("config: batch_size %d must divide n_steps %d", c.Train.BatchSize, c.Train.NSteps)
	}

	if c.Guards.PerNameWeightCap > 0 {
		switch c.Mapping.Mode {
		case "simplex_cash":
			if c.Guards.PerNameWeightCap > c.Mapping.InvestMax {
				return fmt.Errorf("config: per_name_weight_cap %g exceeds invest_max %g", c.Guards.PerNameWeightCap, c.Mapping.InvestMax)
			}
		case "tanh_leverage":
			if c.Guards.PerNameWeightCap > c.Mapping.GrossLeverageCap {
				return fmt.Errorf("config: per_name_weight_cap %g exceeds gross_leverage_cap %g", c.Guards.PerNameWeightCap, c.Mapping.GrossLeverageCap)
			}
		}
	}
	return nil
}

// Snapshot serializes the validated config for the run record.
func (c *Config) Snapshot() ([]byte, error) {
	return yaml.Marshal(c)
}
