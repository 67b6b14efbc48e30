package handler

import (
	"time"

	"trustgrid/internal/oracle/models"
)

// RequestResponse is the HTTP representation of a verification request.
// Individual votes are not echoed back; only the tally is.
type RequestResponse struct {
	ID                    string         `json:"id"`
	IdentityID            string         `json:"identity_id"`
	Type                  string         `json:"type"`
	EvidenceHash          string         `json:"evidence_hash"`
	Status                string         `json:"status"`
	Confirmations         uint32         `json:"confirmations"`
	Rejections            uint32         `json:"rejections"`
	VotesCast             int            `json:"votes_cast"`
	EligibleOracles       uint32         `json:"eligible_oracles"`
	RequiredConfirmations uint32         `json:"required_confirmations"`
	Fee                   uint64         `json:"fee"`
	CreatedAt             time.Time      `json:"created_at"`
	ExpiresAt             time.Time      `json:"expires_at"`
	Result                *models.Result `json:"result,omitempty"`
}

// FromRequest converts a domain request to its HTTP representation.
func FromRequest(req *models.Request) *RequestResponse {
	return &RequestResponse{
		ID:                    req.ID.String(),
		IdentityID:            req.IdentityID.String(),
		Type:                  req.Type.String(),
		EvidenceHash:          req.EvidenceHash.String(),
		Status:                string(req.Status),
		Confirmations:         req.Confirmations,
		Rejections:            req.Rejections,
		VotesCast:             len(req.Votes),
		EligibleOracles:       req.EligibleOracles,
		RequiredConfirmations: req.RequiredConfirmations,
		Fee:                   req.Fee,
		CreatedAt:             req.CreatedAt,
		ExpiresAt:             req.CreatedAt.Add(req.Timeout),
		Result:                req.Result,
	}
}

// ExpireResponse reports how many requests a sweep closed.
type ExpireResponse struct {
	Expired int `json:"expired"`
}
