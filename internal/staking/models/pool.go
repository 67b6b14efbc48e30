package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// Pool is the singleton staking configuration and its running totals.
//
// Invariants:
//   - MinStake > 0
//   - TotalStaked equals the sum of all account StakedAmounts; every change
//     to an account balance is paired with the matching pool change in one
//     atomic store mutation
//   - Version increases on every admin config change so long-lived records
//     can tell which configuration they were created under
type Pool struct {
	Admin           id.Key        `json:"admin"`
	MinStake        uint64        `json:"min_stake"`
	RewardRateBps   uint64        `json:"reward_rate_bps"`
	UnstakeCooldown time.Duration `json:"unstake_cooldown"`
	TotalStaked     uint64        `json:"total_staked"`
	Paused          bool          `json:"paused"`
	Version         uint64        `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewPool(admin id.Key, minStake, rewardRateBps uint64, cooldown time.Duration, now time.Time) (*Pool, error) {
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pool requires an admin key")
	}
	if minStake == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "minimum stake must be positive")
	}
	if cooldown <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unstake cooldown must be positive")
	}
	return &Pool{
		Admin:           admin,
		MinStake:        minStake,
		RewardRateBps:   rewardRateBps,
		UnstakeCooldown: cooldown,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// PoolConfigUpdate carries the admin-settable fields; nil means unchanged.
type PoolConfigUpdate struct {
	MinStake        *uint64
	RewardRateBps   *uint64
	UnstakeCooldown *time.Duration
}

// ApplyConfigUpdate mutates settable fields and bumps the version.
func (p *Pool) ApplyConfigUpdate(update PoolConfigUpdate, now time.Time) error {
	if update.MinStake != nil {
		if *update.MinStake == 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "minimum stake must be positive")
		}
		p.MinStake = *update.MinStake
	}
	if update.RewardRateBps != nil {
		p.RewardRateBps = *update.RewardRateBps
	}
	if update.UnstakeCooldown != nil {
		if *update.UnstakeCooldown <= 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "unstake cooldown must be positive")
		}
		p.UnstakeCooldown = *update.UnstakeCooldown
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// SetPaused flips the accepting-deposits flag. Completing an already
// requested unstake is never blocked by a pause.
func (p *Pool) SetPaused(paused bool, now time.Time) {
	p.Paused = paused
	p.Version++
	p.UpdatedAt = now
}
