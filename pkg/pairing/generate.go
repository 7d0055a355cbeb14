package pairing

import "crypto/rand"

// GeneratedSecretLength is the length of secrets produced by GenerateSecret.
const GeneratedSecretLength = 12

// secretAlphabet avoids visually ambiguous characters (0/O, 1/l/I).
const secretAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

// GenerateSecret produces a random human-shareable secret. Intended for the
// "generate a room key for me" flow; users may also type their own.
func GenerateSecret() (string, error) {
	buf := make([]byte, GeneratedSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, GeneratedSecretLength)
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out), nil
}
