package msgcipher

import "errors"

// Package-level sentinel errors.
var (
	// ErrInvalidKey is returned when a Cipher is created with empty key
	// material.
	ErrInvalidKey = errors.New("msgcipher: invalid key")

	// ErrMalformedCiphertext is returned when a blob cannot be decoded or is
	// structurally truncated.
	ErrMalformedCiphertext = errors.New("msgcipher: malformed ciphertext")

	// ErrDecryptFailed is returned when authentication fails: the key does
	// not match or the blob was tampered with.
	ErrDecryptFailed = errors.New("msgcipher: decryption failed")

	// ErrInvalidUTF8 is returned when a decrypted payload is not valid UTF-8
	// text.
	ErrInvalidUTF8 = errors.New("msgcipher: payload is not valid UTF-8")
)
