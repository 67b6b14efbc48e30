package domain

import (
	"github.com/google/uuid"

	dErrors "trustgrid/pkg/domain-errors"
)

// Typed record IDs. All are uuid-backed; identity and verification-request
// IDs are derived deterministically so that "one record per owner key" and
// "one request per (identity, type) in flight" hold by construction rather
// than by a separate uniqueness index.

type (
	IdentityID   uuid.UUID
	RequestID    uuid.UUID
	CredentialID uuid.UUID
)

// Derivation namespaces. Fixed forever; changing one re-addresses every
// record of that kind.
var (
	nsIdentity = uuid.MustParse("3e6b1af4-9d2c-5b8e-a1f0-6c2d4e8b9a01")
	nsRequest  = uuid.MustParse("7c1d9b2e-4f6a-5c3d-b8e1-0a9f2d6c4b02")
)

// IdentityIDFor derives the canonical identity ID for an owner key. The same
// key always maps to the same ID, so a second create for the key collides in
// the store instead of allocating a duplicate record.
func IdentityIDFor(owner Key) IdentityID {
	return IdentityID(uuid.NewSHA1(nsIdentity, []byte(owner)))
}

// RequestIDFor derives the verification-request ID for an (identity, type)
// pair. A new request after the previous one resolved reuses the address;
// the store only rejects creation while a pending request occupies it.
func RequestIDFor(identity IdentityID, verificationType VerificationType) RequestID {
	seed := make([]byte, 0, 17)
	seed = append(seed, identity[:]...)
	seed = append(seed, byte(verificationType))
	return RequestID(uuid.NewSHA1(nsRequest, seed))
}

// NewCredentialID allocates a random credential ID.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

func (id IdentityID) String() string   { return uuid.UUID(id).String() }
func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }

func (id IdentityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseIdentityID constructs an IdentityID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return IdentityID{}, err
	}
	return IdentityID(u), nil
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(u), nil
}

// ParseCredentialID constructs a CredentialID from external input.
func ParseCredentialID(s string) (CredentialID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CredentialID{}, err
	}
	return CredentialID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
