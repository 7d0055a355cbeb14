package pairing

import (
	"bytes"
	"regexp"
	"testing"
)

var channelIDShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestDeriveChannelID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := DeriveChannelID("myroom123")
		if err != nil {
			t.Fatalf("DeriveChannelID() error = %v", err)
		}
		b, err := DeriveChannelID("myroom123")
		if err != nil {
			t.Fatalf("DeriveChannelID() error = %v", err)
		}
		if a != b {
			t.Errorf("DeriveChannelID() not deterministic: %q != %q", a, b)
		}
	})

	t.Run("grouped hex shape", func(t *testing.T) {
		secrets := []string{"myroom123", "a", "пароль", "room with spaces", "🔑"}
		for _, s := range secrets {
			id, err := DeriveChannelID(s)
			if err != nil {
				t.Fatalf("DeriveChannelID(%q) error = %v", s, err)
			}
			if !channelIDShape.MatchString(id) {
				t.Errorf("DeriveChannelID(%q) = %q, want 8-4-4-4-12 hex shape", s, id)
			}
		}
	})

	t.Run("distinct secrets yield distinct identifiers", func(t *testing.T) {
		a, _ := DeriveChannelID("myroom123")
		b, _ := DeriveChannelID("wrongroom")
		if a == b {
			t.Errorf("identifiers collide: %q", a)
		}
	})

	t.Run("case sensitive", func(t *testing.T) {
		a, _ := DeriveChannelID("Room")
		b, _ := DeriveChannelID("room")
		if a == b {
			t.Error("identifiers should differ for case-distinct secrets")
		}
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		if _, err := DeriveChannelID(""); err != ErrEmptySecret {
			t.Errorf("DeriveChannelID(\"\") error = %v, want %v", err, ErrEmptySecret)
		}
	})
}

func TestDeriveSessionKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := DeriveSessionKey("myroom123")
		if err != nil {
			t.Fatalf("DeriveSessionKey() error = %v", err)
		}
		b, err := DeriveSessionKey("myroom123")
		if err != nil {
			t.Fatalf("DeriveSessionKey() error = %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Error("DeriveSessionKey() not deterministic")
		}
	})

	t.Run("key size", func(t *testing.T) {
		k, _ := DeriveSessionKey("myroom123")
		if len(k) != SessionKeySize {
			t.Errorf("len(key) = %d, want %d", len(k), SessionKeySize)
		}
	})

	t.Run("distinct secrets yield distinct keys", func(t *testing.T) {
		a, _ := DeriveSessionKey("myroom123")
		b, _ := DeriveSessionKey("wrongroom")
		if bytes.Equal(a, b) {
			t.Error("keys collide for distinct secrets")
		}
	})

	t.Run("independent of identifier derivation", func(t *testing.T) {
		// The identifier is public; the key must not be a prefix or
		// restatement of the same digest.
		id, _ := DeriveChannelID("myroom123")
		key, _ := DeriveSessionKey("myroom123")

		stripped := make([]byte, 0, 32)
		for i := 0; i < len(id); i++ {
			if id[i] != '-' {
				stripped = append(stripped, id[i])
			}
		}
		if bytes.Contains([]byte(keyHex(key)), stripped) {
			t.Error("session key restates channel identifier material")
		}
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		if _, err := DeriveSessionKey(""); err != ErrEmptySecret {
			t.Errorf("DeriveSessionKey(\"\") error = %v, want %v", err, ErrEmptySecret)
		}
	})

	t.Run("zero clears material", func(t *testing.T) {
		k, _ := DeriveSessionKey("myroom123")
		k.Zero()
		for i, b := range k {
			if b != 0 {
				t.Fatalf("key[%d] = %#x after Zero(), want 0", i, b)
			}
		}
	})
}

func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678-1234-1234-1234-123456789abc", "12345678"},
		{"deadbeef-0000-0000-0000-000000000000", "deadbeef"},
		{"nohyphens", "nohyphens"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateSecret(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		s, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret() error = %v", err)
		}
		if len(s) != GeneratedSecretLength {
			t.Errorf("len = %d, want %d", len(s), GeneratedSecretLength)
		}
		for _, c := range s {
			if !bytes.ContainsRune([]byte(secretAlphabet), c) {
				t.Errorf("unexpected character %q", c)
			}
		}
	})

	t.Run("unique across calls", func(t *testing.T) {
		a, _ := GenerateSecret()
		b, _ := GenerateSecret()
		if a == b {
			t.Error("two generated secrets are identical")
		}
	})

	t.Run("derivable", func(t *testing.T) {
		s, _ := GenerateSecret()
		if _, err := DeriveChannelID(s); err != nil {
			t.Errorf("DeriveChannelID(generated) error = %v", err)
		}
	})
}

func keyHex(k []byte) string {
	const hexChars = "0123456789abcdef"
	out := make([]byte, 0, len(k)*2)
	for _, b := range k {
		out = append(out, hexChars[b>>4], hexChars[b&0x0F])
	}
	return string(out)
}
