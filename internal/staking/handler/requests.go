package handler

import (
	"time"

	"trustgrid/internal/staking/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// InitializePoolRequest is the body for POST /staking/pool.
type InitializePoolRequest struct {
	MinStake        uint64 `json:"min_stake"`
	RewardRateBps   uint64 `json:"reward_rate_bps"`
	CooldownSeconds int64  `json:"cooldown_seconds"`
}

func (r *InitializePoolRequest) Validate() error {
	if r.CooldownSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "cooldown_seconds must be positive")
	}
	return nil
}

func (r *InitializePoolRequest) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// UpdatePoolRequest is the body for PATCH /staking/pool. Absent fields
// stay unchanged.
type UpdatePoolRequest struct {
	MinStake        *uint64 `json:"min_stake"`
	RewardRateBps   *uint64 `json:"reward_rate_bps"`
	CooldownSeconds *int64  `json:"cooldown_seconds"`
}

func (r *UpdatePoolRequest) Validate() error {
	if r.CooldownSeconds != nil && *r.CooldownSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "cooldown_seconds must be positive")
	}
	return nil
}

func (r *UpdatePoolRequest) ToUpdate() models.PoolConfigUpdate {
	update := models.PoolConfigUpdate{
		MinStake:      r.MinStake,
		RewardRateBps: r.RewardRateBps,
	}
	if r.CooldownSeconds != nil {
		d := time.Duration(*r.CooldownSeconds) * time.Second
		update.UnstakeCooldown = &d
	}
	return update
}

// SetPausedRequest is the body for POST /staking/pool/pause.
type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

func (r *SetPausedRequest) Validate() error { return nil }

// AmountRequest carries a single token amount (stake, unstake request).
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// SlashRequest is the body for POST /staking/slash.
type SlashRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
	Reason string `json:"reason"`

	parsedOwner id.Key
}

func (r *SlashRequest) Validate() error {
	owner, err := id.ParseKey(r.Owner)
	if err != nil {
		return err
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	r.parsedOwner = owner
	return nil
}

func (r *SlashRequest) ParsedOwner() id.Key { return r.parsedOwner }

// AccrueRewardsRequest is the body for POST /staking/rewards/accrue.
type AccrueRewardsRequest struct {
	Epochs uint64 `json:"epochs"`
}

func (r *AccrueRewardsRequest) Validate() error {
	if r.Epochs == 0 {
		return dErrors.New(dErrors.CodeValidation, "epochs must be positive")
	}
	return nil
}
