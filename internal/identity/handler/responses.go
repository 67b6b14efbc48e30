package handler

import (
	"time"

	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
)

// IdentityResponse is the HTTP representation of an identity. The
// verification bitmap is returned both raw and decoded.
type IdentityResponse struct {
	ID                 string    `json:"id"`
	OwnerKey           string    `json:"owner_key"`
	DID                string    `json:"did"`
	MetadataURI        string    `json:"metadata_uri,omitempty"`
	VerificationBitmap uint8     `json:"verification_bitmap"`
	Verifications      []string  `json:"verifications"`
	ReputationScore    int64     `json:"reputation_score"`
	StakedAmount       uint64    `json:"staked_amount"`
	RecoveryKeyCount   int       `json:"recovery_key_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FromIdentity converts a domain identity to its HTTP representation.
// Recovery keys are never echoed back; only their count is.
func FromIdentity(identity *models.Identity) *IdentityResponse {
	var verifications []string
	for _, t := range id.VerificationTypes() {
		if identity.HasVerification(t) {
			verifications = append(verifications, t.String())
		}
	}
	return &IdentityResponse{
		ID:                 identity.ID.String(),
		OwnerKey:           identity.OwnerKey.String(),
		DID:                identity.DID,
		MetadataURI:        identity.MetadataURI,
		VerificationBitmap: identity.VerificationBitmap,
		Verifications:      verifications,
		ReputationScore:    identity.ReputationScore,
		StakedAmount:       identity.StakedAmount,
		RecoveryKeyCount:   len(identity.RecoveryKeys),
		CreatedAt:          identity.CreatedAt,
		UpdatedAt:          identity.UpdatedAt,
	}
}
