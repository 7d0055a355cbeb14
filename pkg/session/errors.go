package session

import "errors"

// Package-level sentinel errors for session operations.
var (
	// ErrNotConnected is returned when sending on a session that is not
	// in the connected state.
	ErrNotConnected = errors.New("session: not connected")

	// ErrAlreadyStarted is returned when connecting a session that was
	// already used for a connection attempt.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrRejected is returned when the peer refuses the handshake, most
	// likely because the two devices derived different channels.
	ErrRejected = errors.New("session: peer rejected the channel")

	// ErrHandshakeTimeout is returned when the peer never answers the
	// channel-binding handshake.
	ErrHandshakeTimeout = errors.New("session: handshake timed out")

	// ErrHandshakeClosed is returned when the transport drops during the
	// handshake.
	ErrHandshakeClosed = errors.New("session: channel closed during handshake")

	// ErrInvalidChannelID is returned when the channel identifier is empty.
	ErrInvalidChannelID = errors.New("session: invalid channel identifier")
)
