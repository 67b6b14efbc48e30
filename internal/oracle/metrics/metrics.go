package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the verification oracle.
type Metrics struct {
	RequestsOpened    prometheus.Counter
	RequestsFinalized *prometheus.CounterVec
	VotesSubmitted    *prometheus.CounterVec
	ActiveOracles     prometheus.Gauge
}

// New creates and registers all oracle metrics.
func New() *Metrics {
	return &Metrics{
		RequestsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_oracle_requests_opened_total",
			Help: "Verification requests opened.",
		}),
		RequestsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgrid_oracle_requests_finalized_total",
			Help: "Verification requests finalized, by outcome.",
		}, []string{"outcome"}),
		VotesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgrid_oracle_votes_submitted_total",
			Help: "Oracle votes submitted, by choice.",
		}, []string{"choice"}),
		ActiveOracles: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trustgrid_oracle_active_nodes",
			Help: "Oracle nodes currently eligible to vote.",
		}),
	}
}
