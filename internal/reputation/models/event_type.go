package models

import (
	dErrors "trustgrid/pkg/domain-errors"
)

// EventType is the closed set of reputation-affecting events. A fixed-size
// table keyed by the enum keeps point lookups deterministic and lets the
// compiler catch a missing entry when a type is added.
type EventType uint8

const (
	EventVerificationCompleted EventType = iota
	EventCredentialIssued
	EventSuccessfulTransaction
	EventStakeDeposited
	EventConsistentActivity
	EventVerificationFailed
	EventCredentialRevoked
	EventSuspiciousActivity
	EventStakeSlashed
	EventInactivityPenalty

	eventTypeCount
)

var eventTypeNames = [eventTypeCount]string{
	EventVerificationCompleted: "verification_completed",
	EventCredentialIssued:      "credential_issued",
	EventSuccessfulTransaction: "successful_transaction",
	EventStakeDeposited:        "stake_deposited",
	EventConsistentActivity:    "consistent_activity",
	EventVerificationFailed:    "verification_failed",
	EventCredentialRevoked:     "credential_revoked",
	EventSuspiciousActivity:    "suspicious_activity",
	EventStakeSlashed:          "stake_slashed",
	EventInactivityPenalty:     "inactivity_penalty",
}

// eventDeltas is the signed point table. Positive entries count as positive
// events even when clamping swallows part of the delta.
var eventDeltas = [eventTypeCount]int64{
	EventVerificationCompleted: +50,
	EventCredentialIssued:      +30,
	EventSuccessfulTransaction: +10,
	EventStakeDeposited:        +20,
	EventConsistentActivity:    +5,
	EventVerificationFailed:    -30,
	EventCredentialRevoked:     -50,
	EventSuspiciousActivity:    -40,
	EventStakeSlashed:          -60,
	EventInactivityPenalty:     -10,
}

// ParseEventType constructs an EventType from external input.
func ParseEventType(s string) (EventType, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "event type cannot be empty")
	}
	for i, name := range eventTypeNames {
		if name == s {
			return EventType(i), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid event type")
}

func (t EventType) IsValid() bool {
	return t < eventTypeCount
}

// Delta returns the signed point value for the event.
func (t EventType) Delta() (int64, error) {
	if !t.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid event type")
	}
	return eventDeltas[t], nil
}

func (t EventType) String() string {
	if !t.IsValid() {
		return "unknown"
	}
	return eventTypeNames[t]
}
