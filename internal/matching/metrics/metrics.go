package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching module.
type Metrics struct {
	// Events consumed by topic and outcome ("applied", "deferred", "failed")
	EventsConsumed *prometheus.CounterVec

	// Deferred events replayed after a dependency arrived, by topic
	EventsReplayed *prometheus.CounterVec

	// Matches created by source ("ENGINE", "MANUAL")
	MatchesCreated *prometheus.CounterVec

	// Matches expired by the sweep, by expiry reason
	MatchesExpired *prometheus.CounterVec

	// Scoring passes that fell back to the rule scorer
	FallbackRuns prometheus.Counter

	// Full engine pass latency
	EnginePassLatency prometheus.Histogram

	// Remote scoring call latency
	ScoringLatency prometheus.Histogram
}

// New creates a new Metrics instance with all matching module metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_matching_events_consumed_total",
			Help: "Total events consumed by topic and outcome",
		}, []string{"topic", "outcome"}),

		EventsReplayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_matching_events_replayed_total",
			Help: "Total deferred events replayed after their dependency arrived",
		}, []string{"topic"}),

		MatchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_matching_matches_created_total",
			Help: "Total matches created by source",
		}, []string{"source"}),

		MatchesExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_matching_matches_expired_total",
			Help: "Total matches expired by the timeout sweep, by reason",
		}, []string{"reason"}),

		FallbackRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifelink_matching_fallback_runs_total",
			Help: "Total scoring passes served by the rule fallback",
		}),

		EnginePassLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifelink_matching_engine_pass_duration_seconds",
			Help:    "Duration of a full matching engine pass",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		ScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifelink_matching_scoring_duration_seconds",
			Help:    "Duration of remote scoring calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementConsumed records a consumed event outcome.
func (m *Metrics) IncrementConsumed(topic, outcome string) {
	if m != nil {
		m.EventsConsumed.WithLabelValues(topic, outcome).Inc()
	}
}

// IncrementReplayed records a deferred event replay.
func (m *Metrics) IncrementReplayed(topic string) {
	if m != nil {
		m.EventsReplayed.WithLabelValues(topic).Inc()
	}
}

// IncrementCreated records a created match.
func (m *Metrics) IncrementCreated(source string) {
	if m != nil {
		m.MatchesCreated.WithLabelValues(source).Inc()
	}
}

// IncrementExpired records a match expired by the sweep.
func (m *Metrics) IncrementExpired(reason string) {
	if m != nil {
		m.MatchesExpired.WithLabelValues(reason).Inc()
	}
}

// IncrementFallback records a scoring pass served by the rule fallback.
func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.FallbackRuns.Inc()
	}
}

// ObserveEnginePass records the duration of a full engine pass.
func (m *Metrics) ObserveEnginePass(d time.Duration) {
	if m != nil {
		m.EnginePassLatency.Observe(d.Seconds())
	}
}

// ObserveScoring records the duration of a remote scoring call.
func (m *Metrics) ObserveScoring(d time.Duration) {
	if m != nil {
		m.ScoringLatency.Observe(d.Seconds())
	}
}
