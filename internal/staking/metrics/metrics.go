package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the staking manager.
type Metrics struct {
	Stakes           prometheus.Counter
	UnstakeRequests  prometheus.Counter
	UnstakesComplete prometheus.Counter
	Slashes          prometheus.Counter
	TotalStaked      prometheus.Gauge
}

// New creates and registers all staking metrics.
func New() *Metrics {
	return &Metrics{
		Stakes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_stake_deposits_total",
			Help: "Stake deposits accepted",
		}),
		UnstakeRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_unstake_requests_total",
			Help: "Unstake requests accepted",
		}),
		UnstakesComplete: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_unstakes_completed_total",
			Help: "Unstakes completed after cooldown",
		}),
		Slashes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_slashes_total",
			Help: "Slashes executed against stake accounts",
		}),
		TotalStaked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trustgrid_total_staked",
			Help: "Current pool total staked amount",
		}),
	}
}
