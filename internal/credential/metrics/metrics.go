package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CredentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustgrid_credentials_issued_total",
		Help: "Credentials issued, by credential type.",
	}, []string{"type"})

	CredentialsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustgrid_credentials_revoked_total",
		Help: "Credentials revoked.",
	})

	IssuersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustgrid_credential_issuers_registered_total",
		Help: "Credential issuers admitted.",
	})
)
