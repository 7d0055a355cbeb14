package msgcipher

import (
	"strings"
	"testing"

	"github.com/whisp-chat/whisp/pkg/pairing"
)

func newTestCipher(t *testing.T, secret string) *Cipher {
	t.Helper()
	key, err := pairing.DeriveSessionKey(secret)
	if err != nil {
		t.Fatalf("DeriveSessionKey() error = %v", err)
	}
	c, err := New(key)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	t.Run("empty key rejected", func(t *testing.T) {
		if _, err := New(nil); err != ErrInvalidKey {
			t.Errorf("New(nil) error = %v, want %v", err, ErrInvalidKey)
		}
	})

	t.Run("key copied", func(t *testing.T) {
		key := []byte("0123456789abcdef0123456789abcdef")
		c, err := New(key)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		ct, _ := c.Encrypt("hello")

		// Zeroing the caller's copy must not affect the cipher.
		for i := range key {
			key[i] = 0
		}
		if _, err := c.Decrypt(ct); err != nil {
			t.Errorf("Decrypt() after caller zeroed key: error = %v", err)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	c := newTestCipher(t, "myroom123")

	plaintexts := []string{
		"hello",
		"",
		"a longer message with spaces and punctuation!?",
		"многоязычный текст",
		"emoji 🦉 payload",
		strings.Repeat("x", 4096),
	}

	for _, m := range plaintexts {
		ct, err := c.Encrypt(m)
		if err != nil {
			t.Fatalf("Encrypt(%.20q) error = %v", m, err)
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt(Encrypt(%.20q)) error = %v", m, err)
		}
		if got != m {
			t.Errorf("round trip mismatch: got %.20q, want %.20q", got, m)
		}
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	c := newTestCipher(t, "myroom123")

	a, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext are identical, want fresh salt/nonce per call")
	}
}

func TestDecryptCrossKey(t *testing.T) {
	sender := newTestCipher(t, "myroom123")
	receiver := newTestCipher(t, "wrongroom")

	ct, err := sender.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := receiver.Decrypt(ct); err != ErrDecryptFailed {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptFailed)
	}
}

func TestDecryptTampered(t *testing.T) {
	c := newTestCipher(t, "myroom123")

	ct, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Flip one character of the base64 payload body.
	tampered := []byte(ct)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = c.Decrypt(string(tampered))
	if err != ErrDecryptFailed && err != ErrMalformedCiphertext {
		t.Errorf("Decrypt(tampered) error = %v, want decrypt or malformed failure", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCipher(t, "myroom123")

	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"too short", "V1NQMQ=="},
		{"wrong magic", "QUJDRDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMA=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.in); err != ErrMalformedCiphertext {
				t.Errorf("Decrypt(%q) error = %v, want %v", tt.in, err, ErrMalformedCiphertext)
			}
		})
	}
}

func TestDecryptInvalidUTF8(t *testing.T) {
	c := newTestCipher(t, "myroom123")

	// A Go string may carry arbitrary bytes; the cipher round-trips them but
	// Decrypt refuses to hand back non-text payloads.
	ct, err := c.Encrypt(string([]byte{0xff, 0xfe, 0xfd}))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := c.Decrypt(ct); err != ErrInvalidUTF8 {
		t.Errorf("Decrypt(non-utf8 payload) error = %v, want %v", err, ErrInvalidUTF8)
	}
}
