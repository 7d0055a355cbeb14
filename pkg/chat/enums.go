// Package chat implements the pairing orchestrator: the one object the
// presentation layer talks to.
//
// A Client owns the connection state, the active session and the
// append-only message log. It drives the whole pairing flow (derive
// channel material from the secret, discover a peer, dial, run the
// session handshake) and surfaces every outcome as state transitions,
// log entries and callbacks.
package chat

// ConnectionState is the client-level connection lifecycle. Unlike a
// session, a client can leave a terminal state by starting a new
// connection attempt.
type ConnectionState int

const (
	// StateIdle means no session and no attempt in flight.
	StateIdle ConnectionState = iota

	// StateConnecting means discovery or a handshake is in progress.
	StateConnecting

	// StateConnected means a session is active and messages flow.
	StateConnected

	// StateDisconnected means the last session ended.
	StateDisconnected

	// StateFailed means the last connection attempt failed.
	StateFailed
)

// String returns a human-readable name for the state.
func (s ConnectionState) String() string {
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

// CanConnect reports whether a new connection attempt may start.
func (s ConnectionState) CanConnect() bool {
	return s == StateIdle || s == StateDisconnected || s == StateFailed
}
