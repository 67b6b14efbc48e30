package handler

import (
	"strings"
	"time"

	"trustgrid/internal/credential/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// RegisterIssuerRequest is the body for POST /issuers.
type RegisterIssuerRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	DID  string `json:"did"`

	parsedKey id.Key
}

func (r *RegisterIssuerRequest) Validate() error {
	key, err := id.ParseKey(strings.TrimSpace(r.Key))
	if err != nil {
		return err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || len(r.Name) > models.MaxIssuerNameLen {
		return dErrors.New(dErrors.CodeValidation, "name must be 1-64 characters")
	}
	if len(r.DID) > models.MaxIssuerDIDLen {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonDIDTooLong, "did must be at most 128 bytes")
	}
	r.parsedKey = key
	return nil
}

func (r *RegisterIssuerRequest) ParsedKey() id.Key { return r.parsedKey }

// IssueCredentialRequest is the body for POST /credentials.
type IssueCredentialRequest struct {
	Holder      string    `json:"holder"`
	Type        string    `json:"type"`
	MetadataURI string    `json:"metadata_uri"`
	ProofURI    string    `json:"proof_uri"`
	ExpiresAt   time.Time `json:"expires_at"`

	parsedHolder id.IdentityID
}

func (r *IssueCredentialRequest) Validate() error {
	holder, err := id.ParseIdentityID(r.Holder)
	if err != nil {
		return err
	}
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" || len(r.Type) > models.MaxCredentialTypeLen {
		return dErrors.New(dErrors.CodeValidation, "type must be 1-32 characters")
	}
	if len(r.MetadataURI) > models.MaxMetadataURILen {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "metadata_uri must be at most 256 bytes")
	}
	if len(r.ProofURI) > models.MaxProofURILen {
		return dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "proof_uri must be at most 256 bytes")
	}
	if r.ExpiresAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "expires_at is required")
	}
	r.parsedHolder = holder
	return nil
}

func (r *IssueCredentialRequest) ParsedHolder() id.IdentityID { return r.parsedHolder }
