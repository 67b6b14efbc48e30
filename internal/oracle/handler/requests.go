package handler

import (
	"time"

	"trustgrid/internal/oracle/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// InitializeConfigRequest is the body for POST /oracle/config.
type InitializeConfigRequest struct {
	MinOracleStake        uint64 `json:"min_oracle_stake"`
	RequiredConfirmations uint32 `json:"required_confirmations"`
	TimeoutSeconds        int64  `json:"timeout_seconds"`
	VerificationFee       uint64 `json:"verification_fee"`
}

func (r *InitializeConfigRequest) Validate() error {
	if r.RequiredConfirmations == 0 {
		return dErrors.New(dErrors.CodeValidation, "required_confirmations must be positive")
	}
	if r.TimeoutSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_seconds must be positive")
	}
	return nil
}

func (r *InitializeConfigRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// UpdateConfigRequest is the body for PATCH /oracle/config. Absent fields
// stay unchanged.
type UpdateConfigRequest struct {
	MinOracleStake        *uint64 `json:"min_oracle_stake"`
	RequiredConfirmations *uint32 `json:"required_confirmations"`
	TimeoutSeconds        *int64  `json:"timeout_seconds"`
	VerificationFee       *uint64 `json:"verification_fee"`
}

func (r *UpdateConfigRequest) Validate() error {
	if r.RequiredConfirmations != nil && *r.RequiredConfirmations == 0 {
		return dErrors.New(dErrors.CodeValidation, "required_confirmations must be positive")
	}
	if r.TimeoutSeconds != nil && *r.TimeoutSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_seconds must be positive")
	}
	return nil
}

func (r *UpdateConfigRequest) ToUpdate() models.ConfigUpdate {
	update := models.ConfigUpdate{
		MinOracleStake:        r.MinOracleStake,
		RequiredConfirmations: r.RequiredConfirmations,
		VerificationFee:       r.VerificationFee,
	}
	if r.TimeoutSeconds != nil {
		d := time.Duration(*r.TimeoutSeconds) * time.Second
		update.RequestTimeout = &d
	}
	return update
}

// RegisterOracleRequest is the body for POST /oracle/nodes.
type RegisterOracleRequest struct {
	StakeOwner string `json:"stake_owner"`

	parsedStakeOwner id.Key
}

func (r *RegisterOracleRequest) Validate() error {
	owner, err := id.ParseKey(r.StakeOwner)
	if err != nil {
		return err
	}
	r.parsedStakeOwner = owner
	return nil
}

func (r *RegisterOracleRequest) ParsedStakeOwner() id.Key { return r.parsedStakeOwner }

// RequestVerificationRequest is the body for POST /verifications.
type RequestVerificationRequest struct {
	IdentityID   string `json:"identity_id"`
	Type         string `json:"type"`
	EvidenceHash string `json:"evidence_hash"`

	parsedIdentityID id.IdentityID
	parsedType       id.VerificationType
	parsedEvidence   models.EvidenceHash
}

func (r *RequestVerificationRequest) Validate() error {
	identityID, err := id.ParseIdentityID(r.IdentityID)
	if err != nil {
		return err
	}
	verificationType, err := id.ParseVerificationType(r.Type)
	if err != nil {
		return err
	}
	evidence, err := models.ParseEvidenceHash(r.EvidenceHash)
	if err != nil {
		return err
	}
	r.parsedIdentityID = identityID
	r.parsedType = verificationType
	r.parsedEvidence = evidence
	return nil
}

func (r *RequestVerificationRequest) ParsedIdentityID() id.IdentityID { return r.parsedIdentityID }
func (r *RequestVerificationRequest) ParsedType() id.VerificationType { return r.parsedType }
func (r *RequestVerificationRequest) ParsedEvidence() models.EvidenceHash { return r.parsedEvidence }

// SubmitVoteRequest is the body for POST /verifications/{id}/votes.
type SubmitVoteRequest struct {
	Choice string `json:"choice"`

	parsedChoice models.VoteChoice
}

func (r *SubmitVoteRequest) Validate() error {
	choice, err := models.ParseVoteChoice(r.Choice)
	if err != nil {
		return err
	}
	r.parsedChoice = choice
	return nil
}

func (r *SubmitVoteRequest) ParsedChoice() models.VoteChoice { return r.parsedChoice }
