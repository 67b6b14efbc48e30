package models

import (
	"slices"
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

const (
	MaxDIDLen         = 128
	MaxMetadataURILen = 256
	MaxRecoveryKeys   = 5
)

// Identity is the canonical record for one self-sovereign identity.
//
// Invariants:
//   - exactly one record per owner key; the ID is derived from the owner key
//     at creation so a duplicate create collides instead of forking
//   - DID is immutable and at most 128 bytes; oversized input is rejected,
//     never truncated
//   - at most 5 recovery keys
//   - records are never destroyed here; erasure is an external compliance
//     concern
//
// ReputationScore and StakedAmount are snapshots pushed in by the reputation
// engine and staking manager; the engine's own records are authoritative.
type Identity struct {
	ID                 id.IdentityID `json:"id"`
	OwnerKey           id.Key        `json:"owner_key"`
	DID                string        `json:"did"`
	MetadataURI        string        `json:"metadata_uri,omitempty"`
	VerificationBitmap uint8         `json:"verification_bitmap"`
	ReputationScore    int64         `json:"reputation_score"`
	StakedAmount       uint64        `json:"staked_amount"`
	RecoveryKeys       []id.Key      `json:"recovery_keys"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func NewIdentity(ownerKey id.Key, did, metadataURI string, recoveryKeys []id.Key, baseScore int64, now time.Time) (*Identity, error) {
	if ownerKey.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity requires an owner key")
	}
	if did == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "did cannot be empty")
	}
	if len(did) > MaxDIDLen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonDIDTooLong,
			"did exceeds maximum length of 128 bytes")
	}
	if len(metadataURI) > MaxMetadataURILen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong,
			"metadata uri exceeds maximum length of 256 bytes")
	}
	if len(recoveryKeys) > MaxRecoveryKeys {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonTooManyRecoveryKeys,
			"too many recovery keys (maximum 5)")
	}
	return &Identity{
		ID:              id.IdentityIDFor(ownerKey),
		OwnerKey:        ownerKey,
		DID:             did,
		MetadataURI:     metadataURI,
		ReputationScore: baseScore,
		RecoveryKeys:    slices.Clone(recoveryKeys),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanAddRecoveryKey checks the cap.
func (i *Identity) CanAddRecoveryKey() error {
	if len(i.RecoveryKeys) >= MaxRecoveryKeys {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonTooManyRecoveryKeys,
			"too many recovery keys (maximum 5)")
	}
	return nil
}

// ApplyRecoveryKey appends a recovery key. Call CanAddRecoveryKey first.
func (i *Identity) ApplyRecoveryKey(key id.Key, now time.Time) {
	i.RecoveryKeys = append(i.RecoveryKeys, key)
	i.UpdatedAt = now
}

// CanRecover checks that the signer is in the recovery set at call time.
func (i *Identity) CanRecover(signer id.Key) error {
	if !slices.Contains(i.RecoveryKeys, signer) {
		return dErrors.NewReason(dErrors.CodeUnauthorized, dErrors.ReasonUnauthorizedRecovery,
			"signer is not a registered recovery key")
	}
	return nil
}

// ApplyRecovery swaps the owner key. The recovery-key set is intentionally
// left unchanged, including the key that just signed; whether a used
// recovery key should rotate out is an open product question and silently
// "fixing" it here would change observed behavior.
func (i *Identity) ApplyRecovery(newOwner id.Key, now time.Time) {
	i.OwnerKey = newOwner
	i.UpdatedAt = now
}

// SetVerificationBit sets or clears one bitmap bit.
func (i *Identity) SetVerificationBit(t id.VerificationType, verified bool, now time.Time) error {
	if !t.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid verification type")
	}
	if verified {
		i.VerificationBitmap |= t.Bit()
	} else {
		i.VerificationBitmap &^= t.Bit()
	}
	i.UpdatedAt = now
	return nil
}

// HasVerification reports whether the type's bit is set.
func (i *Identity) HasVerification(t id.VerificationType) bool {
	return i.VerificationBitmap&t.Bit() != 0
}
