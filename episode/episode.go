// Package episode orchestrates one simulation run: window, observe,
// decide, guard, execute, account, reward, journal, publish — one pass
// per bar until the data runs out or a terminal condition fires.
package episode

import (
	"github.com/stockbot/simcore/metrics"
)

// Policy maps a flattened observation to a raw action vector. The
// learning loop lives outside this module; tests and the CLI plug in
// deterministic policies.
type Policy interface {
	Act(obs []float32) ([]float64, error)
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(obs []float32) ([]float64, error)

func (f PolicyFunc) Act(obs []float32) ([]float64, error) { return f(obs) }

// Status of a finished run.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result summarizes a completed episode. Equity holds the end-of-step
// equity series, one point per executed step.
type Result struct {
	RunID       string
	Status      Status
	Reason      string
	Steps       int
	StartEquity float64
	EndEquity   float64
	Equity      []float64
	Metrics     metrics.RunMetrics
}
