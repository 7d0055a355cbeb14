package pairing

import "errors"

// Package-level sentinel errors.
var (
	// ErrEmptySecret is returned when a derivation is attempted on an empty
	// secret. Callers normally pre-validate and surface this to the user.
	ErrEmptySecret = errors.New("pairing: empty secret")
)
