package chat

import "time"

// Direction classifies who produced a message.
type Direction int

const (
	// DirectionSent is a message the local user sent.
	DirectionSent Direction = iota

	// DirectionReceived is a message from the peer.
	DirectionReceived

	// DirectionSystem is a status line produced by the client itself.
	DirectionSystem
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "sent"
	case DirectionReceived:
		return "received"
	case DirectionSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message is one entry in the client's append-only conversation log.
type Message struct {
	// ID is a monotonically increasing identifier, unique per client.
	ID int64

	// Direction classifies the message.
	Direction Direction

	// Text is the plaintext content.
	Text string

	// Time is when the message was appended locally.
	Time time.Time
}
