package handler

import (
	"trustgrid/internal/reputation/models"
	dErrors "trustgrid/pkg/domain-errors"
)

// ApplyEventRequest is the body for POST /reputation/{id}/events.
type ApplyEventRequest struct {
	EventType string `json:"event_type"`

	parsedEventType models.EventType
}

func (r *ApplyEventRequest) Validate() error {
	eventType, err := models.ParseEventType(r.EventType)
	if err != nil {
		return err
	}
	r.parsedEventType = eventType
	return nil
}

func (r *ApplyEventRequest) ParsedEventType() models.EventType { return r.parsedEventType }

// ChallengeRequest is the body for POST /reputation/{id}/challenges.
type ChallengeRequest struct {
	Reason      string `json:"reason"`
	EvidenceURI string `json:"evidence_uri"`
}

func (r *ChallengeRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// ResolveChallengeRequest is the body for POST /reputation/{id}/challenges/resolve.
type ResolveChallengeRequest struct {
	Won     bool  `json:"won"`
	Penalty int64 `json:"penalty"`
}

func (r *ResolveChallengeRequest) Validate() error {
	if r.Penalty < 0 {
		return dErrors.New(dErrors.CodeValidation, "penalty cannot be negative")
	}
	return nil
}

// ApplyDecayRequest is the body for POST /reputation/{id}/decay.
type ApplyDecayRequest struct {
	DaysElapsed int64 `json:"days_elapsed"`
}

func (r *ApplyDecayRequest) Validate() error {
	if r.DaysElapsed <= 0 {
		return dErrors.New(dErrors.CodeValidation, "days_elapsed must be positive")
	}
	return nil
}
