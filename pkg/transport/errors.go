package transport

import "errors"

// Package-level sentinel errors for transport operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed
	// channel, listener, or network.
	ErrClosed = errors.New("transport: closed")

	// ErrAlreadyStarted is returned when starting an already-started
	// component.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrNotStarted is returned when an operation requires a started
	// component.
	ErrNotStarted = errors.New("transport: not started")

	// ErrNoHandler is returned when a required handler is missing.
	ErrNoHandler = errors.New("transport: no handler configured")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

	// ErrInvalidAddress is returned for empty or malformed peer addresses.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrAddressInUse is returned when a memory listener name is taken.
	ErrAddressInUse = errors.New("transport: address already in use")

	// ErrPeerNotFound is returned when dialing an unknown memory address.
	ErrPeerNotFound = errors.New("transport: peer not found")
)
