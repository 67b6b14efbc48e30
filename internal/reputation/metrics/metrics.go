package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reputation engine.
type Metrics struct {
	EventsApplied      *prometheus.CounterVec
	DecayApplied       prometheus.Counter
	TierTransitions    *prometheus.CounterVec
	ChallengesOpened   prometheus.Counter
	ChallengesResolved *prometheus.CounterVec
}

// New creates and registers all reputation metrics.
func New() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgrid_reputation_events_total",
			Help: "Reputation events applied, by event type",
		}, []string{"event_type"}),
		DecayApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_reputation_decay_total",
			Help: "Decay applications performed",
		}),
		TierTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgrid_reputation_tier_transitions_total",
			Help: "Tier changes, by tier entered",
		}, []string{"tier"}),
		ChallengesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_reputation_challenges_opened_total",
			Help: "Reputation challenges opened",
		}),
		ChallengesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgrid_reputation_challenges_resolved_total",
			Help: "Reputation challenges resolved, by outcome",
		}, []string{"outcome"}),
	}
}
