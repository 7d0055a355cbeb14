// Package msgcipher encrypts and decrypts chat payloads with a derived
// session key.
//
// The wire form is a self-contained base64 string: a fresh random salt and
// nonce are embedded in every blob, so two encryptions of the same plaintext
// never produce the same ciphertext. The per-message key is expanded from
// the session key and the salt with HKDF-SHA256, and the payload is sealed
// with AES-256-GCM.
package msgcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

const (
	// SaltSize is the per-message salt length in bytes.
	SaltSize = 16

	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12

	// messageKeySize is the expanded AES-256 key length.
	messageKeySize = 32

	// messageKeyInfo is the HKDF context string for per-message keys.
	messageKeyInfo = "whisp/v1 message"
)

// magic is the version tag prefixed to every blob. It is also bound into
// the AEAD as associated data, so header tampering fails authentication.
var magic = []byte("WSP1")

// Cipher seals and opens payloads under one session key. Safe for
// concurrent use.
type Cipher struct {
	key []byte
}

// New creates a Cipher bound to the given session key material.
func New(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	c := &Cipher{key: make([]byte, len(key))}
	copy(c.key, key)
	return c, nil
}

// Encrypt seals plaintext into a transportable string. Each call draws a
// fresh salt and nonce, so equal inputs yield distinct outputs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	var header [SaltSize + NonceSize]byte
	if _, err := rand.Read(header[:]); err != nil {
		return "", err
	}
	salt := header[:SaltSize]
	nonce := header[SaltSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, len(magic)+len(header)+len(plaintext)+aead.Overhead())
	blob = append(blob, magic...)
	blob = append(blob, header[:]...)
	blob = aead.Seal(blob, nonce, []byte(plaintext), magic)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt under the same session key.
// Failures are discriminated: ErrMalformedCiphertext for undecodable or
// truncated input, ErrDecryptFailed for authentication failure (wrong key
// or tampering), ErrInvalidUTF8 when the recovered bytes are not valid
// UTF-8 text. Decrypt never panics.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	headerLen := len(magic) + SaltSize + NonceSize
	if len(blob) < headerLen {
		return "", ErrMalformedCiphertext
	}
	for i := range magic {
		if blob[i] != magic[i] {
			return "", ErrMalformedCiphertext
		}
	}

	salt := blob[len(magic) : len(magic)+SaltSize]
	nonce := blob[len(magic)+SaltSize : headerLen]
	sealed := blob[headerLen:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, sealed, magic)
	if err != nil {
		return "", ErrDecryptFailed
	}

	if !utf8.Valid(plaintext) {
		return "", ErrInvalidUTF8
	}
	return string(plaintext), nil
}

// aead builds the AES-256-GCM instance for one salt.
func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	mk := make([]byte, messageKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.key, salt, []byte(messageKeyInfo)), mk); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(mk)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
