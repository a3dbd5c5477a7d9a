package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeNoData   = "no_data"
	OutcomeSkipped  = "circuit_open"
)

type Metrics struct {
	TierOutcomes  *prometheus.CounterVec
	TierLatency   *prometheus.HistogramVec
	Verdicts      *prometheus.CounterVec
	FailOpenTotal prometheus.Counter
	BreakerState  *prometheus.GaugeVec
}

// New registers the rate limiter metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TierOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authguard_ratelimit_tier_outcomes_total",
			Help: "Rate limit backend calls by tier and outcome",
		}, []string{"tier", "outcome"}),
		TierLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authguard_ratelimit_tier_duration_seconds",
			Help:    "Rate limit backend call latency by tier",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"tier"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authguard_ratelimit_verdicts_total",
			Help: "Rate limit verdicts by action, allowed and degraded",
		}, []string{"action", "allowed", "degraded"}),
		FailOpenTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "authguard_ratelimit_fail_open_total",
			Help: "Checks answered by fail-open because no backend responded",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "authguard_ratelimit_breaker_open",
			Help: "1 while the tier's circuit breaker is open",
		}, []string{"tier"}),
	}
}

func (m *Metrics) ObserveTier(tier, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TierOutcomes.WithLabelValues(tier, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.TierLatency.WithLabelValues(tier).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) IncrementVerdict(action string, allowed, degraded bool) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(action, boolLabel(allowed), boolLabel(degraded)).Inc()
}

func (m *Metrics) IncrementFailOpen() {
	if m == nil {
		return
	}
	m.FailOpenTotal.Inc()
}

func (m *Metrics) SetBreakerOpen(tier string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(tier).Set(v)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
