package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the identity registry.
type Metrics struct {
	IdentitiesCreated prometheus.Counter
	Recoveries        prometheus.Counter
}

// New creates and registers all identity metrics.
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_identities_created_total",
			Help: "Identities created in the registry",
		}),
		Recoveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustgrid_identity_recoveries_total",
			Help: "Successful owner-key recoveries",
		}),
	}
}
