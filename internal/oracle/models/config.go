package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// Config is the oracle network's governance record.
//
// ActiveOracleCount is the only global counter here; every change to it is
// paired atomically with the node mutation that caused it. Thresholds are
// copied onto each request at creation, so changing them never alters an
// in-flight request's difficulty.
type Config struct {
	Admin                 id.Key        `json:"admin"`
	MinOracleStake        uint64        `json:"min_oracle_stake"`
	RequiredConfirmations uint32        `json:"required_confirmations"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	VerificationFee       uint64        `json:"verification_fee"`
	ActiveOracleCount     uint32        `json:"active_oracle_count"`
	// FeesCollected accounts fees paid into the vault. Actual token
	// movement is the host runtime's concern.
	FeesCollected uint64    `json:"fees_collected"`
	Version       uint64    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewConfig(admin id.Key, minOracleStake uint64, requiredConfirmations uint32, timeout time.Duration, fee uint64, now time.Time) (*Config, error) {
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "oracle config requires an admin key")
	}
	if requiredConfirmations == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "required confirmations must be positive")
	}
	if timeout <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request timeout must be positive")
	}
	return &Config{
		Admin:                 admin,
		MinOracleStake:        minOracleStake,
		RequiredConfirmations: requiredConfirmations,
		RequestTimeout:        timeout,
		VerificationFee:       fee,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// ConfigUpdate carries admin-settable fields; nil means unchanged.
type ConfigUpdate struct {
	MinOracleStake        *uint64
	RequiredConfirmations *uint32
	RequestTimeout        *time.Duration
	VerificationFee       *uint64
}

// ApplyUpdate mutates settable fields and bumps the version. In-flight
// requests keep the thresholds they copied at creation.
func (c *Config) ApplyUpdate(update ConfigUpdate, now time.Time) error {
	if update.RequiredConfirmations != nil {
		if *update.RequiredConfirmations == 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "required confirmations must be positive")
		}
		c.RequiredConfirmations = *update.RequiredConfirmations
	}
	if update.RequestTimeout != nil {
		if *update.RequestTimeout <= 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "request timeout must be positive")
		}
		c.RequestTimeout = *update.RequestTimeout
	}
	if update.MinOracleStake != nil {
		c.MinOracleStake = *update.MinOracleStake
	}
	if update.VerificationFee != nil {
		c.VerificationFee = *update.VerificationFee
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}
