package chat

import "errors"

// Package-level sentinel errors for chat client operations.
var (
	// ErrEmptySecret is returned when a connect operation receives an
	// empty secret. Recovered locally; the user is re-prompted.
	ErrEmptySecret = errors.New("chat: empty secret")

	// ErrBusy is returned when a connect is attempted while another
	// connect or an active session is in flight.
	ErrBusy = errors.New("chat: connection already in progress")

	// ErrCancelled is returned by a PeerSelector when the user aborts
	// the selection prompt, and surfaced by the connect operation.
	ErrCancelled = errors.New("chat: selection cancelled")

	// ErrNotConnected is returned when sending without an active session.
	ErrNotConnected = errors.New("chat: not connected")

	// ErrNoPeerSelector is returned by ConnectByScanning when no
	// selector callback is configured.
	ErrNoPeerSelector = errors.New("chat: no peer selector configured")
)
