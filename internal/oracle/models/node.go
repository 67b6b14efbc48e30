package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

type NodeStatus string

const (
	NodeStatusActive   NodeStatus = "active"
	NodeStatusInactive NodeStatus = "inactive"
)

// Node is a registered oracle operator. Authority is the key that signs
// votes; StakeOwner points at the stake account backing the registration.
type Node struct {
	Authority              id.Key     `json:"authority"`
	StakeOwner             id.Key     `json:"stake_owner"`
	Status                 NodeStatus `json:"status"`
	VerificationsSubmitted uint64     `json:"verifications_submitted"`
	AccurateVerifications  uint64     `json:"accurate_verifications"`
	SlashCount             uint32     `json:"slash_count"`
	RegisteredAt           time.Time  `json:"registered_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func NewNode(authority, stakeOwner id.Key, now time.Time) (*Node, error) {
	if authority.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "oracle node requires an authority key")
	}
	if stakeOwner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "oracle node requires a stake owner key")
	}
	return &Node{
		Authority:    authority,
		StakeOwner:   stakeOwner,
		Status:       NodeStatusActive,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

func (n *Node) IsActive() bool {
	return n.Status == NodeStatusActive
}

// ApplyDeactivation takes the node out of the eligible set. Requests that
// froze their eligible population before this keep counting the node.
func (n *Node) ApplyDeactivation(now time.Time) error {
	if n.Status != NodeStatusActive {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonOracleNotActive, "oracle node is not active")
	}
	n.Status = NodeStatusInactive
	n.UpdatedAt = now
	return nil
}

func (n *Node) RecordVote(now time.Time) {
	n.VerificationsSubmitted++
	n.UpdatedAt = now
}

// RecordAccuracy is called when a finalized request agreed with this
// node's vote.
func (n *Node) RecordAccuracy(now time.Time) {
	n.AccurateVerifications++
	n.UpdatedAt = now
}
