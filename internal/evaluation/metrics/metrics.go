package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for risk evaluations.
type Metrics struct {
	// Decisions by action, level and decision
	Decisions *prometheus.CounterVec

	// Score distribution by action
	Scores *prometheus.HistogramVec

	// Full evaluation latency, rate limit included
	EvaluateLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authguard_risk_decisions_total",
			Help: "Risk decisions by action, level and decision",
		}, []string{"action", "level", "decision"}),
		Scores: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authguard_risk_score",
			Help:    "Distribution of clamped risk scores",
			Buckets: []float64{0, 10, 24, 35, 49, 60, 74, 90, 100},
		}, []string{"action"}),
		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "authguard_risk_evaluate_duration_seconds",
			Help:    "Duration of a full evaluation including the rate limit check",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) ObserveDecision(action, level, decision string, score int) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(action, level, decision).Inc()
	m.Scores.WithLabelValues(action).Observe(float64(score))
}

func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
