package handler

import (
	"strings"

	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// CreateIdentityRequest is the HTTP request body for POST /identities.
type CreateIdentityRequest struct {
	DID          string   `json:"did"`
	MetadataURI  string   `json:"metadata_uri"`
	RecoveryKeys []string `json:"recovery_keys"`

	parsedRecoveryKeys []id.Key
}

// Validate validates and parses the request.
func (r *CreateIdentityRequest) Validate() error {
	r.DID = strings.TrimSpace(r.DID)
	if r.DID == "" {
		return dErrors.New(dErrors.CodeValidation, "did is required")
	}
	if len(r.DID) > models.MaxDIDLen {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonDIDTooLong, "did must be at most 128 bytes")
	}
	if len(r.MetadataURI) > models.MaxMetadataURILen {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "metadata_uri must be at most 256 bytes")
	}
	if len(r.RecoveryKeys) > models.MaxRecoveryKeys {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonTooManyRecoveryKeys, "at most 5 recovery keys")
	}
	r.parsedRecoveryKeys = r.parsedRecoveryKeys[:0]
	for _, raw := range r.RecoveryKeys {
		key, err := id.ParseKey(raw)
		if err != nil {
			return err
		}
		r.parsedRecoveryKeys = append(r.parsedRecoveryKeys, key)
	}
	return nil
}

// ParsedRecoveryKeys returns the recovery keys parsed by Validate.
func (r *CreateIdentityRequest) ParsedRecoveryKeys() []id.Key {
	return r.parsedRecoveryKeys
}

// AddRecoveryKeyRequest is the body for POST /identities/{id}/recovery-keys.
type AddRecoveryKeyRequest struct {
	RecoveryKey string `json:"recovery_key"`

	parsedKey id.Key
}

func (r *AddRecoveryKeyRequest) Validate() error {
	key, err := id.ParseKey(strings.TrimSpace(r.RecoveryKey))
	if err != nil {
		return err
	}
	r.parsedKey = key
	return nil
}

func (r *AddRecoveryKeyRequest) ParsedKey() id.Key { return r.parsedKey }

// RecoverIdentityRequest is the body for POST /identities/{id}/recover.
type RecoverIdentityRequest struct {
	NewOwnerKey string `json:"new_owner_key"`

	parsedKey id.Key
}

func (r *RecoverIdentityRequest) Validate() error {
	key, err := id.ParseKey(strings.TrimSpace(r.NewOwnerKey))
	if err != nil {
		return err
	}
	r.parsedKey = key
	return nil
}

func (r *RecoverIdentityRequest) ParsedKey() id.Key { return r.parsedKey }
