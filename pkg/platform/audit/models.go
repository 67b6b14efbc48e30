package audit

import (
	"time"

	id "trustgrid/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// identity lifecycle, credential issuance and revocation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// recovery operations, slashes, oracle registration changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: votes, reputation adjustments, routine staking flows.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// IdentityID is the identity the action concerns, when there is one.
	IdentityID id.IdentityID
	// Actor is the key that performed the action (owner, oracle authority,
	// recovery signer, admin). May differ from the identity's owner.
	Actor id.Key
	// Action is one of the AuditEvent constants.
	Action string
	// Reason carries free-form context (slash reason, rejection cause).
	Reason string
	// RequestID is the correlation ID from the call context.
	RequestID string
}

type AuditEvent string

const (
	// Identity registry events
	EventIdentityCreated   AuditEvent = "identity_created"
	EventRecoveryKeyAdded  AuditEvent = "recovery_key_added"
	EventIdentityRecovered AuditEvent = "identity_recovered"

	// Staking events
	EventStakeDeposited   AuditEvent = "stake_deposited"
	EventUnstakeRequested AuditEvent = "unstake_requested"
	EventUnstakeCompleted AuditEvent = "unstake_completed"
	EventUnstakeCancelled AuditEvent = "unstake_cancelled"
	EventStakeSlashed     AuditEvent = "stake_slashed"

	// Oracle events
	EventOracleRegistered      AuditEvent = "oracle_registered"
	EventOracleDeregistered    AuditEvent = "oracle_deregistered"
	EventVerificationRequested AuditEvent = "verification_requested"
	EventVoteSubmitted         AuditEvent = "vote_submitted"
	EventVerificationConfirmed AuditEvent = "verification_confirmed"
	EventVerificationRejected  AuditEvent = "verification_rejected"
	EventVerificationExpired   AuditEvent = "verification_expired"

	// Reputation events
	EventReputationAdjusted   AuditEvent = "reputation_adjusted"
	EventReputationDecayed    AuditEvent = "reputation_decayed"
	EventReputationChallenged AuditEvent = "reputation_challenged"
	EventChallengeResolved    AuditEvent = "challenge_resolved"

	// Credential events
	EventIssuerRegistered  AuditEvent = "issuer_registered"
	EventIssuerRevoked     AuditEvent = "issuer_revoked"
	EventCredentialIssued  AuditEvent = "credential_issued"
	EventCredentialRevoked AuditEvent = "credential_revoked"
)

// eventCategories is the source of truth for routing. Events not listed
// default to operations.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityCreated:   CategoryCompliance,
	EventCredentialIssued:  CategoryCompliance,
	EventCredentialRevoked: CategoryCompliance,
	EventIssuerRegistered:  CategoryCompliance,
	EventIssuerRevoked:     CategoryCompliance,

	EventIdentityRecovered:    CategorySecurity,
	EventRecoveryKeyAdded:     CategorySecurity,
	EventStakeSlashed:         CategorySecurity,
	EventOracleRegistered:     CategorySecurity,
	EventOracleDeregistered:   CategorySecurity,
	EventReputationChallenged: CategorySecurity,
}

// Category returns the routing category for the event.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}
