package obs

import "math"

// Rolling is a fixed-window mean/stddev over a stream of values. The step
// loop feeds it per-step log returns; the reward shaper and the
// volatility-targeting guard read the realized vol from it.
type Rolling struct {
	window int
	buf    []float64
	next   int
	full   bool
}

// NewRolling creates a rolling window of the given size.
func NewRolling(window int) *Rolling {
	if window < 1 {
		window = 1
	}
	return &Rolling{window: window, buf: make([]float64, window)}
}

// Push adds a value, evicting the oldest once the window is full.
func (r *Rolling) Push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == r.window {
		r.next = 0
		r.full = true
	}
}

// Count returns how many values the window currently holds.
func (r *Rolling) Count() int {
	if r.full {
		return r.window
	}
	return r.next
}

// Mean of the values currently in the window.
func (r *Rolling) Mean() float64 {
	n := r.Count()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.buf[i]
	}
	return sum / float64(n)
}

// Std is the sample standard deviation of the window, 0 until two values
// are present.
func (r *Rolling) Std() float64 {
	n := r.Count()
	if n < 2 {
		return 0
	}
	mean := r.Mean()
	ss := 0.0
	for i := 0; i < n; i++ {
		d := r.buf[i] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Annualized scales the per-step stddev by sqrt(periodsPerYear).
func (r *Rolling) Annualized(periodsPerYear float64) float64 {
	return r.Std() * math.Sqrt(periodsPerYear)
}
