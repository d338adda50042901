// Package obs normalizes flattened observation vectors with running
// per-channel statistics, and provides the rolling-window stats the reward
// and risk layers read realized volatility from.
package obs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Mode selects whether running statistics keep updating.
type Mode int

const (
	// ModeTrain updates channel statistics on every normalize call.
	ModeTrain Mode = iota
	// ModeFrozen uses loaded statistics and never updates them, so
	// evaluation runs cannot leak future data into the scaler.
	ModeFrozen
)

// Epsilon guards the variance denominator while statistics are still
// degenerate in the first steps.
const Epsilon = 1e-8

// ShapeError is fatal: the observation layout must be identical every step
// regardless of how many symbols are configured.
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("obs: sample has %d channels, normalizer expects %d", e.Got, e.Want)
}

// Normalizer keeps running (count, mean, variance) per channel using
// Welford's incremental update.
type Normalizer struct {
	mode  Mode
	dim   int
	count float64
	mean  []float64
	m2    []float64
}

// NewNormalizer creates a train-mode normalizer for a fixed channel count.
func NewNormalizer(dim int) *Normalizer {
	return &Normalizer{
		mode: ModeTrain,
		dim:  dim,
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

// Dim returns the fixed channel count.
func (n *Normalizer) Dim() int { return n.dim }

// Mode reports whether statistics are still updating.
func (n *Normalizer) Mode() Mode { return n.mode }

// Freeze stops statistic updates.
func (n *Normalizer) Freeze() { n.mode = ModeFrozen }

// Normalize updates statistics (train mode only) and returns the sample
// scaled to (x-mean)/sqrt(var+eps), cast to a fixed float32 layout.
func (n *Normalizer) Normalize(x []float64) ([]float32, error) {
	if len(x) != n.dim {
		return nil, &ShapeError{Got: len(x), Want: n.dim}
	}

	if n.mode == ModeTrain {
		n.count++
		for i, v := range x {
			delta := v - n.mean[i]
			n.mean[i] += delta / n.count
			n.m2[i] += delta * (v - n.mean[i])
		}
	}

	out := make([]float32, n.dim)
	for i, v := range x {
		variance := 0.0
		if n.count > 0 {
			variance = n.m2[i] / n.count
		}
		out[i] = float32((v - n.mean[i]) / math.Sqrt(variance+Epsilon))
	}
	return out, nil
}

type statsFile struct {
	Dim   int       `json:"dim"`
	Count float64   `json:"count"`
	Mean  []float64 `json:"mean"`
	M2    []float64 `json:"m2"`
}

// Save writes the running statistics so a later evaluation run can load
// them frozen.
func (n *Normalizer) Save(path string) error {
	b, err := json.MarshalIndent(statsFile{Dim: n.dim, Count: n.count, Mean: n.mean, M2: n.m2}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadFrozen reads statistics from a prior run and returns a frozen
// normalizer.
func LoadFrozen(path string) (*Normalizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("obs: read stats: %w", err)
	}
	var sf statsFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("obs: parse stats: %w", err)
	}
	if sf.Dim != len(sf.Mean) || sf.Dim != len(sf.M2) {
		return nil, fmt.Errorf("obs: stats file inconsistent: dim %d, mean %d, m2 %d", sf.Dim, len(sf.Mean), len(sf.M2))
	}
	return &Normalizer{
		mode:  ModeFrozen,
		dim:   sf.Dim,
		count: sf.Count,
		mean:  sf.Mean,
		m2:    sf.M2,
	}, nil
}
