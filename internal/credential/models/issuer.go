package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

const (
	MaxIssuerNameLen = 64
	MaxIssuerDIDLen  = 128
)

// Issuer is an organization trusted to attest claims about identities.
// Admission and revocation are admin operations.
type Issuer struct {
	Key               id.Key    `json:"key"`
	Name              string    `json:"name"`
	DID               string    `json:"did"`
	Revoked           bool      `json:"revoked"`
	CredentialsIssued uint64    `json:"credentials_issued"`
	RegisteredAt      time.Time `json:"registered_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewIssuer(key id.Key, name, did string, now time.Time) (*Issuer, error) {
	if key.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer requires a key")
	}
	if name == "" || len(name) > MaxIssuerNameLen {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name must be 1-64 characters")
	}
	if len(did) > MaxIssuerDIDLen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonDIDTooLong, "issuer DID exceeds maximum length")
	}
	return &Issuer{
		Key:          key,
		Name:         name,
		DID:          did,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

// ApplyRevocation bars the issuer from issuing. Credentials it already
// issued stay valid until individually revoked.
func (i *Issuer) ApplyRevocation(now time.Time) error {
	if i.Revoked {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonIssuerRevoked, "issuer is already revoked")
	}
	i.Revoked = true
	i.UpdatedAt = now
	return nil
}

func (i *Issuer) CanIssue() error {
	if i.Revoked {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonIssuerRevoked, "issuer has been revoked")
	}
	return nil
}

func (i *Issuer) RecordIssuance(now time.Time) {
	i.CredentialsIssued++
	i.UpdatedAt = now
}
