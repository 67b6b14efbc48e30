package models

import (
	"encoding/hex"
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusConfirmed RequestStatus = "confirmed"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusExpired   RequestStatus = "expired"
)

// IsTerminal reports whether the status admits no further votes.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

type VoteChoice string

const (
	VoteConfirm VoteChoice = "confirm"
	VoteReject  VoteChoice = "reject"
)

func ParseVoteChoice(raw string) (VoteChoice, error) {
	switch VoteChoice(raw) {
	case VoteConfirm, VoteReject:
		return VoteChoice(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown vote choice: "+raw)
	}
}

// EvidenceHash is an opaque commitment to off-chain verification evidence.
type EvidenceHash [32]byte

func ParseEvidenceHash(raw string) (EvidenceHash, error) {
	var h EvidenceHash
	b, err := hex.DecodeString(raw)
	if err != nil {
		return h, dErrors.New(dErrors.CodeInvalidInput, "evidence hash must be hex-encoded")
	}
	if len(b) != len(h) {
		return h, dErrors.New(dErrors.CodeInvalidInput, "evidence hash must be 32 bytes")
	}
	copy(h[:], b)
	return h, nil
}

func (h EvidenceHash) String() string {
	return hex.EncodeToString(h[:])
}

// Result records the final tally of a closed request.
type Result struct {
	Outcome       RequestStatus `json:"outcome"`
	Confirmations uint32        `json:"confirmations"`
	Rejections    uint32        `json:"rejections"`
	FinalizedAt   time.Time     `json:"finalized_at"`
}

// Request is one verification round for an identity and type. Its address
// is deterministic, so at most one pending round exists per pair; a
// terminal round may be superseded by a fresh one at the same address.
//
// RequiredConfirmations, Timeout and EligibleOracles are frozen copies of
// the config taken at creation. Later config changes or oracle churn never
// move the goalposts for a round already in flight.
type Request struct {
	ID                    id.RequestID          `json:"id"`
	IdentityID            id.IdentityID         `json:"identity_id"`
	Type                  id.VerificationType   `json:"type"`
	EvidenceHash          EvidenceHash          `json:"evidence_hash"`
	Status                RequestStatus         `json:"status"`
	Confirmations         uint32                `json:"confirmations"`
	Rejections            uint32                `json:"rejections"`
	Votes                 map[id.Key]VoteChoice `json:"votes"`
	EligibleOracles       uint32                `json:"eligible_oracles"`
	RequiredConfirmations uint32                `json:"required_confirmations"`
	Timeout               time.Duration         `json:"timeout"`
	Fee                   uint64                `json:"fee"`
	ConfigVersion         uint64                `json:"config_version"`
	CreatedAt             time.Time             `json:"created_at"`
	Result                *Result               `json:"result,omitempty"`
}

func NewRequest(identityID id.IdentityID, verificationType id.VerificationType, evidence EvidenceHash, cfg *Config, now time.Time) (*Request, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification request requires an identity")
	}
	if !verificationType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown verification type")
	}
	if cfg.ActiveOracleCount < cfg.RequiredConfirmations {
		return nil, dErrors.New(dErrors.CodeFailedPrecondition, "not enough active oracles to reach quorum")
	}
	return &Request{
		ID:                    id.RequestIDFor(identityID, verificationType),
		IdentityID:            identityID,
		Type:                  verificationType,
		EvidenceHash:          evidence,
		Status:                RequestStatusPending,
		Votes:                 make(map[id.Key]VoteChoice),
		EligibleOracles:       cfg.ActiveOracleCount,
		RequiredConfirmations: cfg.RequiredConfirmations,
		Timeout:               cfg.RequestTimeout,
		Fee:                   cfg.VerificationFee,
		ConfigVersion:         cfg.Version,
		CreatedAt:             now,
	}, nil
}

func (r *Request) IsExpired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > r.Timeout
}

// CanVote checks every precondition for authority to record a vote.
// Expiry is the caller's concern; a stale pending request must be
// transitioned with ApplyExpiry before the vote is rejected.
func (r *Request) CanVote(authority id.Key) error {
	if r.Status.IsTerminal() {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonRequestNotPending, "verification request is "+string(r.Status))
	}
	if _, voted := r.Votes[authority]; voted {
		return dErrors.NewReason(dErrors.CodeConflict, dErrors.ReasonAlreadyVoted, "oracle has already voted on this request")
	}
	return nil
}

// ApplyVote records the vote and finalizes the request when the tally
// decides it. Returns the status after the vote.
//
// Confirmation wins as soon as the threshold is met. Rejection requires
// impossibility: even if every eligible oracle that has not yet voted were
// to confirm, the threshold could not be reached.
func (r *Request) ApplyVote(authority id.Key, choice VoteChoice, now time.Time) (RequestStatus, error) {
	if err := r.CanVote(authority); err != nil {
		return r.Status, err
	}
	r.Votes[authority] = choice
	switch choice {
	case VoteConfirm:
		r.Confirmations++
	case VoteReject:
		r.Rejections++
	default:
		return r.Status, dErrors.New(dErrors.CodeInvalidInput, "unknown vote choice")
	}

	if r.Confirmations >= r.RequiredConfirmations {
		r.finalize(RequestStatusConfirmed, now)
		return r.Status, nil
	}
	votesCast := uint32(len(r.Votes))
	remaining := uint32(0)
	if r.EligibleOracles > votesCast {
		remaining = r.EligibleOracles - votesCast
	}
	if r.Confirmations+remaining < r.RequiredConfirmations {
		r.finalize(RequestStatusRejected, now)
	}
	return r.Status, nil
}

// ApplyExpiry closes a pending request whose timeout has elapsed.
func (r *Request) ApplyExpiry(now time.Time) error {
	if r.Status.IsTerminal() {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonRequestNotPending, "verification request is "+string(r.Status))
	}
	if !r.IsExpired(now) {
		return dErrors.New(dErrors.CodeFailedPrecondition, "verification request has not timed out")
	}
	r.finalize(RequestStatusExpired, now)
	return nil
}

func (r *Request) finalize(status RequestStatus, now time.Time) {
	r.Status = status
	r.Result = &Result{
		Outcome:       status,
		Confirmations: r.Confirmations,
		Rejections:    r.Rejections,
		FinalizedAt:   now,
	}
}
