package domain

import (
	dErrors "trustgrid/pkg/domain-errors"
)

// VerificationType identifies a category of credential an identity can have
// verified. Each type occupies one bit of the identity's verification bitmap.
//
// Invariant: the value must be one of the supported types (bits 0..7).
// Construct via ParseVerificationType at trust boundaries; direct casting
// bypasses validation.
type VerificationType uint8

const (
	VerificationAadhaar VerificationType = iota
	VerificationPAN
	VerificationVoterID
	VerificationEducational
	VerificationEmployment
	VerificationBankAccount
	VerificationEmail
	VerificationPhone

	verificationTypeCount
)

var verificationTypeNames = [verificationTypeCount]string{
	VerificationAadhaar:     "aadhaar",
	VerificationPAN:         "pan",
	VerificationVoterID:     "voter_id",
	VerificationEducational: "educational",
	VerificationEmployment:  "employment",
	VerificationBankAccount: "bank_account",
	VerificationEmail:       "email",
	VerificationPhone:       "phone",
}

// ParseVerificationType constructs a VerificationType from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseVerificationType(s string) (VerificationType, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "verification type cannot be empty")
	}
	for i, name := range verificationTypeNames {
		if name == s {
			return VerificationType(i), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid verification type")
}

// VerificationTypes returns every supported type in bitmap order.
func VerificationTypes() []VerificationType {
	out := make([]VerificationType, 0, verificationTypeCount)
	for t := VerificationType(0); t < verificationTypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// IsValid checks that the type is one of the supported enum values.
func (t VerificationType) IsValid() bool {
	return t < verificationTypeCount
}

// Bit returns the type's position in the verification bitmap.
func (t VerificationType) Bit() uint8 {
	return 1 << t
}

func (t VerificationType) String() string {
	if !t.IsValid() {
		return "unknown"
	}
	return verificationTypeNames[t]
}
