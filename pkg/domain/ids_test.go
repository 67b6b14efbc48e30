package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityIDFor(t *testing.T) {
	t.Run("deterministic per owner key", func(t *testing.T) {
		assert.Equal(t, IdentityIDFor("owner-1"), IdentityIDFor("owner-1"))
		assert.NotEqual(t, IdentityIDFor("owner-1"), IdentityIDFor("owner-2"))
	})

	t.Run("never nil", func(t *testing.T) {
		assert.False(t, IdentityIDFor("owner-1").IsNil())
	})
}

func TestRequestIDFor(t *testing.T) {
	identity := IdentityIDFor("owner-1")

	t.Run("varies by identity and type", func(t *testing.T) {
		assert.Equal(t, RequestIDFor(identity, VerificationEmail), RequestIDFor(identity, VerificationEmail))
		assert.NotEqual(t, RequestIDFor(identity, VerificationEmail), RequestIDFor(identity, VerificationPhone))
		assert.NotEqual(t, RequestIDFor(identity, VerificationEmail), RequestIDFor(IdentityIDFor("owner-2"), VerificationEmail))
	})
}

func TestParseIDs(t *testing.T) {
	t.Run("round trips through String", func(t *testing.T) {
		identity := IdentityIDFor("owner-1")
		parsed, err := ParseIdentityID(identity.String())
		require.NoError(t, err)
		assert.Equal(t, identity, parsed)

		credential := NewCredentialID()
		parsedCred, err := ParseCredentialID(credential.String())
		require.NoError(t, err)
		assert.Equal(t, credential, parsedCred)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseIdentityID("")
		assert.Error(t, err)
		_, err = ParseIdentityID("not-a-uuid")
		assert.Error(t, err)
		_, err = ParseRequestID(uuid.Nil.String())
		assert.Error(t, err)
	})
}

func TestParseKey(t *testing.T) {
	t.Run("accepts printable ascii", func(t *testing.T) {
		key, err := ParseKey("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
		require.NoError(t, err)
		assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", key.String())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for name, input := range map[string]string{
			"empty":      "",
			"too long":   strings.Repeat("a", maxKeyLen+1),
			"whitespace": "key with spaces",
			"control":    "key\x00",
			"non-ascii":  "kéy",
		} {
			_, err := ParseKey(input)
			assert.Error(t, err, name)
		}
	})
}

func FuzzParseKey(f *testing.F) {
	f.Add("owner-1")
	f.Add("")
	f.Add(strings.Repeat("a", maxKeyLen))
	f.Add("key with space")
	f.Fuzz(func(t *testing.T, s string) {
		key, err := ParseKey(s)
		if err != nil {
			return
		}
		if key.IsZero() {
			t.Fatalf("accepted key is zero: %q", s)
		}
		if len(s) > maxKeyLen {
			t.Fatalf("accepted oversized key: %d", len(s))
		}
		for _, r := range s {
			if r <= ' ' || r > '~' {
				t.Fatalf("accepted invalid rune %q in %q", r, s)
			}
		}
	})
}

func TestVerificationTypes(t *testing.T) {
	t.Run("bits are distinct and cover one byte", func(t *testing.T) {
		var seen uint8
		for _, vt := range VerificationTypes() {
			assert.Zero(t, seen&vt.Bit(), vt.String())
			seen |= vt.Bit()
		}
		assert.Equal(t, uint8(0xff), seen)
	})

	t.Run("names round trip", func(t *testing.T) {
		for _, vt := range VerificationTypes() {
			parsed, err := ParseVerificationType(vt.String())
			require.NoError(t, err)
			assert.Equal(t, vt, parsed)
		}
	})

	t.Run("unknown names rejected", func(t *testing.T) {
		_, err := ParseVerificationType("")
		assert.Error(t, err)
		_, err = ParseVerificationType("passport")
		assert.Error(t, err)
	})
}
