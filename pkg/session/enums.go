// Package session implements the encrypted conversation layer between
// two paired devices.
//
// A Session sits between the framed transport channel and the chat
// layer. It runs the channel-binding handshake, encrypts outgoing text
// with the pairing session key, decrypts and validates inbound frames,
// and reports connection state transitions to its owner.
//
// Two modes exist: a channel session exchanges frames with a live peer,
// while an echo session loops messages back locally when no peer is
// reachable. The echo path exercises the full encrypt/decrypt cycle so
// the experience matches a real conversation.
package session

// State describes the connection lifecycle of a session.
type State int

const (
	// StateIdle is the initial state before any connection attempt.
	StateIdle State = iota

	// StateConnecting means the handshake is in progress.
	StateConnecting

	// StateConnected means messages can flow.
	StateConnected

	// StateDisconnected is the terminal state after either side hangs up.
	StateDisconnected

	// StateFailed is the terminal state after a failed connection attempt.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true once the session can never carry messages again.
func (s State) IsTerminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// Mode describes how a connected session carries messages.
type Mode int

const (
	// ModeChannel exchanges encrypted frames with a live peer.
	ModeChannel Mode = iota

	// ModeEcho loops messages back locally with a small delay.
	ModeEcho
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeChannel:
		return "Channel"
	case ModeEcho:
		return "Echo"
	default:
		return "Unknown"
	}
}
