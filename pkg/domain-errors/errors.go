// Package dErrors defines the coded error vocabulary shared by every
// domain module. Services translate store sentinels into these; the HTTP
// layer maps codes onto status codes without inspecting messages.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeFailedPrecondition Code = "failed_precondition"
	CodeInternal           Code = "internal"
)

// Reason pins down the specific rule behind a coded error, for clients
// that branch on more than the Code.
type Reason string

const (
	ReasonDIDTooLong              Reason = "did_too_long"
	ReasonURITooLong              Reason = "uri_too_long"
	ReasonTooManyRecoveryKeys     Reason = "too_many_recovery_keys"
	ReasonUnauthorizedRecovery    Reason = "unauthorized_recovery"
	ReasonInsufficientStakeAmount Reason = "insufficient_stake_amount"
	ReasonUnstakeAlreadyRequested Reason = "unstake_already_requested"
	ReasonCooldownNotElapsed      Reason = "cooldown_not_elapsed"
	ReasonPoolPaused              Reason = "pool_paused"
	ReasonInsufficientOracleStake Reason = "insufficient_oracle_stake"
	ReasonRequestNotPending       Reason = "request_not_pending"
	ReasonRequestExpired          Reason = "request_expired"
	ReasonAlreadyVoted            Reason = "already_voted"
	ReasonOracleNotActive         Reason = "oracle_not_active"
	ReasonIssuerRevoked           Reason = "issuer_revoked"
	ReasonCredentialRevoked       Reason = "credential_revoked"
)

type Error struct {
	Code    Code
	Reason  Reason
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewReason(code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code to an underlying error while keeping it reachable
// through errors.Is and errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is treats two coded errors as equal when their codes match and, if the
// target carries a reason, the reasons match too.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if e.Code != other.Code {
		return false
	}
	return other.Reason == "" || e.Reason == other.Reason
}

// HasCode reports whether err carries the given code anywhere in its
// chain.
func HasCode(err error, code Code) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Code == code
}

// HasReason reports whether err carries the given reason anywhere in its
// chain.
func HasReason(err error, reason Reason) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Reason == reason
}
