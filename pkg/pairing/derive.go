// Package pairing derives the public channel identifier and the symmetric
// session key from a human-chosen secret.
//
// Both values are derived from the same secret but with domain-separated
// HKDF context strings, so observing the (publicly advertised) channel
// identifier does not aid recovery of the session key.
package pairing

import (
	"crypto/sha256"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionKeySize is the derived symmetric key length in bytes.
	SessionKeySize = 32

	// ChannelIDSize is the channel identifier length in bytes before
	// rendering to the grouped-hex form.
	ChannelIDSize = 16

	// DefaultChannelID is the well-known fallback identifier used when no
	// secret-derived identifier applies.
	DefaultChannelID = "12345678-1234-1234-1234-123456789abc"
)

// HKDF context strings. Distinct per derivation so the identifier and the
// key are independent.
const (
	channelIDInfo  = "whisp/v1 channel id"
	sessionKeyInfo = "whisp/v1 session key"
)

// SessionKey is symmetric key material derived from a secret. It lives only
// in memory for the duration of one session.
type SessionKey []byte

// Zero overwrites the key material. Call on disconnect.
func (k SessionKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// DeriveChannelID deterministically derives the channel identifier for a
// secret. The identifier has the grouped-hex shape
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx and is identical for the same secret
// on every device. It is observable by anyone scanning and is not itself
// secret-preserving.
func DeriveChannelID(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	material, err := deriveSHA256([]byte(secret), []byte(channelIDInfo), ChannelIDSize)
	if err != nil {
		return "", err
	}

	id, err := uuid.FromBytes(material)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DeriveSessionKey deterministically derives the symmetric session key for a
// secret. Both peers derive the same key from the same secret with no
// negotiation.
func DeriveSessionKey(secret string) (SessionKey, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	material, err := deriveSHA256([]byte(secret), []byte(sessionKeyInfo), SessionKeySize)
	if err != nil {
		return nil, err
	}
	return SessionKey(material), nil
}

// ShortID returns the short filter token for a channel identifier: the first
// hyphen group. Used as the DNS-SD subtype filter so a browse only surfaces
// peers advertising a matching identifier.
func ShortID(channelID string) string {
	for i := 0; i < len(channelID); i++ {
		if channelID[i] == '-' {
			return channelID[:i]
		}
	}
	return channelID
}

// deriveSHA256 derives length bytes from the secret using HKDF-SHA256 with
// the given context string.
func deriveSHA256(secret, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
