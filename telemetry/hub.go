// Package telemetry fans immutable step snapshots out to any number of
// subscribers. The core never learns who is listening; SSE/WebSocket
// framing is the embedding layer's problem.
package telemetry

import "sync"

// Snapshot is the bar-by-bar state a UI renders: P&L, exposure, slippage
// and the decision path. Value type, never mutated after publish.
type Snapshot struct {
	RunID         string
	Step          int
	Equity        float64
	Cash          float64
	Drawdown      float64
	GrossExposure float64
	Reward        float64
	Weights       []float64
	Symbols       []string
	Fills         int
	AvgSlippageBp float64
	Halted        bool
	Terminal      string
}

// Hub is a non-blocking broadcast: a subscriber that stops draining loses
// snapshots rather than stalling the step loop.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Snapshot]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriber channels buffer the given number
// of snapshots.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	return &Hub{subs: make(map[chan Snapshot]struct{}), buffer: buffer}
}

// Subscribe returns a snapshot channel and a cancel func. The channel
// closes on cancel or hub close.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Snapshot, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the snapshot to every subscriber, dropping it for any
// whose buffer is full.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close tears the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
