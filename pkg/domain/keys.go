package domain

import (
	dErrors "trustgrid/pkg/domain-errors"
)

// Key is an externally supplied participant public key (owner, oracle
// authority, recovery contact, issuer). The trust layer never performs key
// custody; keys arrive already authenticated and are treated as opaque
// identifiers.
//
// Invariant: non-empty, at most 64 characters, printable ASCII without
// whitespace. Construct via ParseKey at trust boundaries; direct casting
// bypasses validation.
type Key string

const maxKeyLen = 64

// ParseKey constructs a Key from external input.
//
// Errors: CodeInvalidInput when the value is empty, too long, or contains
// non-printable or whitespace characters.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "key cannot be empty")
	}
	if len(s) > maxKeyLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "key exceeds maximum length")
	}
	for _, r := range s {
		if r <= ' ' || r > '~' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "key contains invalid characters")
		}
	}
	return Key(s), nil
}

func (k Key) IsZero() bool { return k == "" }

func (k Key) String() string { return string(k) }
