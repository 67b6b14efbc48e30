package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// StakeAccount tracks one participant's collateral.
//
// State machine: Staked <-> UnstakeRequested -> Unstaked, with slashing as an
// orthogonal modifier: a slash reduces the balance in any state and never
// touches the cooldown machine. Completion re-clamps the released amount to
// the current balance so a slash landing during the cooldown can never make
// an unstake withdraw more than the account still holds.
//
// Invariants:
//   - StakedAmount never goes negative (slash floors at zero)
//   - at most one pending unstake request at a time
type StakeAccount struct {
	Owner              id.Key     `json:"owner"`
	StakedAmount       uint64     `json:"staked_amount"`
	PendingUnstake     uint64     `json:"pending_unstake"`
	UnstakeRequestedAt *time.Time `json:"unstake_requested_at,omitempty"`
	SlashCount         uint32     `json:"slash_count"`
	RewardsAccrued     uint64     `json:"rewards_accrued"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func NewStakeAccount(owner id.Key, now time.Time) (*StakeAccount, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stake account requires an owner key")
	}
	return &StakeAccount{Owner: owner, CreatedAt: now, UpdatedAt: now}, nil
}

// HasPendingUnstake reports whether a cooldown is in progress.
func (a *StakeAccount) HasPendingUnstake() bool {
	return a.UnstakeRequestedAt != nil
}

// ApplyStake credits a deposit.
func (a *StakeAccount) ApplyStake(amount uint64, now time.Time) {
	a.StakedAmount += amount
	a.UpdatedAt = now
}

// CanRequestUnstake checks the single-pending-request and balance rules.
func (a *StakeAccount) CanRequestUnstake(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "unstake amount must be positive")
	}
	if a.HasPendingUnstake() {
		return dErrors.NewReason(dErrors.CodeConflict, dErrors.ReasonUnstakeAlreadyRequested,
			"an unstake request is already pending")
	}
	if amount > a.StakedAmount {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonInsufficientStakeAmount,
			"unstake amount exceeds staked balance")
	}
	return nil
}

// ApplyUnstakeRequest records the pending amount and starts the cooldown.
// Call CanRequestUnstake first.
func (a *StakeAccount) ApplyUnstakeRequest(amount uint64, now time.Time) {
	a.PendingUnstake = amount
	t := now
	a.UnstakeRequestedAt = &t
	a.UpdatedAt = now
}

// CanCompleteUnstake checks that a request exists and its cooldown elapsed.
func (a *StakeAccount) CanCompleteUnstake(cooldown time.Duration, now time.Time) error {
	if !a.HasPendingUnstake() {
		return dErrors.New(dErrors.CodeConflict, "no unstake request is pending")
	}
	if now.Sub(*a.UnstakeRequestedAt) < cooldown {
		return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonCooldownNotElapsed,
			"unstake cooldown has not elapsed")
	}
	return nil
}

// ApplyUnstakeCompletion releases the pending amount, clamped to the current
// balance, and clears the request. Returns the released amount.
func (a *StakeAccount) ApplyUnstakeCompletion(now time.Time) uint64 {
	released := min(a.PendingUnstake, a.StakedAmount)
	a.StakedAmount -= released
	a.PendingUnstake = 0
	a.UnstakeRequestedAt = nil
	a.UpdatedAt = now
	return released
}

// ApplyUnstakeCancellation clears a pending request without moving funds.
func (a *StakeAccount) ApplyUnstakeCancellation(now time.Time) error {
	if !a.HasPendingUnstake() {
		return dErrors.New(dErrors.CodeConflict, "no unstake request is pending")
	}
	a.PendingUnstake = 0
	a.UnstakeRequestedAt = nil
	a.UpdatedAt = now
	return nil
}

// ApplySlash removes up to amount from the balance, flooring at zero.
// A pending unstake request is left intact; completion re-clamps against
// the reduced balance. Returns the amount actually slashed.
func (a *StakeAccount) ApplySlash(amount uint64, now time.Time) uint64 {
	slashed := min(amount, a.StakedAmount)
	a.StakedAmount -= slashed
	a.SlashCount++
	a.UpdatedAt = now
	return slashed
}

// ApplyRewardAccrual credits epochs worth of rewards at the given rate.
// Rewards accumulate in their own bucket and never compound into stake.
func (a *StakeAccount) ApplyRewardAccrual(epochs uint64, rateBps uint64, now time.Time) uint64 {
	earned := a.StakedAmount * rateBps * epochs / 10_000
	a.RewardsAccrued += earned
	a.UpdatedAt = now
	return earned
}
