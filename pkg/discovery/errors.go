package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when starting an already-started advertisement.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrNotStarted is returned when stopping an advertisement that was not started.
	ErrNotStarted = errors.New("discovery: not started")

	// ErrNotFound is returned when no peer advertising the channel was found
	// before the deadline.
	ErrNotFound = errors.New("discovery: no matching peer found")

	// ErrPermissionDenied is returned when the platform refuses local
	// network access for mDNS operations.
	ErrPermissionDenied = errors.New("discovery: local network permission denied")

	// ErrInvalidChannelID is returned when the channel identifier is empty.
	ErrInvalidChannelID = errors.New("discovery: invalid channel identifier")

	// ErrInvalidDeviceName is returned when the device name exceeds the
	// maximum length.
	ErrInvalidDeviceName = errors.New("discovery: invalid device name (max 32 characters)")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")
)
