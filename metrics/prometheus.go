package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes run activity to Prometheus. The orchestrator calls
// it per step and per terminal state; scraping is the embedding service's
// concern.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	stepsTotal  prometheus.Counter
	fillsTotal  *prometheus.CounterVec
	haltsTotal  prometheus.Counter
	equityGauge *prometheus.GaugeVec
	stepSeconds prometheus.Histogram
}

// NewRecorder registers the collectors on the given registerer (pass
// prometheus.DefaultRegisterer, or a private registry in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simcore_runs_total",
				Help: "Terminal run states by status",
			},
			[]string{"status"},
		),
		stepsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "simcore_steps_total",
				Help: "Simulation steps executed",
			},
		),
		fillsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simcore_fills_total",
				Help: "Fills applied, by symbol",
			},
			[]string{"symbol"},
		),
		haltsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "simcore_risk_halts_total",
				Help: "Daily-loss halts triggered",
			},
		),
		equityGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simcore_equity",
				Help: "Current equity per run",
			},
			[]string{"run_id"},
		),
		stepSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simcore_step_duration_seconds",
				Help:    "Wall time per simulation step",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (r *Recorder) RecordStep(runID string, equity, seconds float64) {
	r.stepsTotal.Inc()
	r.equityGauge.WithLabelValues(runID).Set(equity)
	r.stepSeconds.Observe(seconds)
}

func (r *Recorder) RecordFill(symbol string) {
	r.fillsTotal.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordHalt() {
	r.haltsTotal.Inc()
}

func (r *Recorder) RecordRunEnd(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}
