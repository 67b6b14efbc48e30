package audit

import (
	"context"

	id "trustgrid/pkg/domain"
)

// Store persists audit events. Implementations: in-memory (tests, dev) and
// postgres outbox (production, relayed to Kafka).
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]Event, error)
}
