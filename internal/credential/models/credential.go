package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

const (
	MaxCredentialTypeLen = 32
	MaxMetadataURILen    = 256
	MaxProofURILen       = 256
)

// Credential is an attestation about a holder identity, signed off-chain
// and anchored here by its URIs.
type Credential struct {
	ID          id.CredentialID `json:"id"`
	Issuer      id.Key          `json:"issuer"`
	Holder      id.IdentityID   `json:"holder"`
	Type        string          `json:"type"`
	MetadataURI string          `json:"metadata_uri"`
	ProofURI    string          `json:"proof_uri"`
	IssuedAt    time.Time       `json:"issued_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Revoked     bool            `json:"revoked"`
	RevokedAt   *time.Time      `json:"revoked_at,omitempty"`
}

func NewCredential(issuer id.Key, holder id.IdentityID, credentialType, metadataURI, proofURI string, expiresAt, now time.Time) (*Credential, error) {
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential requires an issuer")
	}
	if holder.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential requires a holder identity")
	}
	if credentialType == "" || len(credentialType) > MaxCredentialTypeLen {
		return nil, dErrors.New(dErrors.CodeValidation, "credential type must be 1-32 characters")
	}
	if len(metadataURI) > MaxMetadataURILen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "metadata URI exceeds maximum length")
	}
	if len(proofURI) > MaxProofURILen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "proof URI exceeds maximum length")
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "credential expiry must be in the future")
	}
	return &Credential{
		ID:          id.NewCredentialID(),
		Issuer:      issuer,
		Holder:      holder,
		Type:        credentialType,
		MetadataURI: metadataURI,
		ProofURI:    proofURI,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	}, nil
}

// IsExpired reports natural expiry; expiry is distinct from revocation and
// carries no reputation penalty.
func (c *Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ApplyRevocation marks the credential revoked. Revocation is final and
// idempotency is rejected so the reputation penalty fires exactly once.
func (c *Credential) ApplyRevocation(now time.Time) error {
	if c.Revoked {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonCredentialRevoked, "credential is already revoked")
	}
	c.Revoked = true
	t := now
	c.RevokedAt = &t
	return nil
}
