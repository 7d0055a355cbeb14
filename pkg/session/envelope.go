package session

import "errors"

// Frame type opcodes carried in the first byte of every transport frame.
const (
	// frameHello opens the handshake. Payload: the dialer's full channel
	// identifier, so the host can verify both sides derived the same
	// channel before any chat data flows.
	frameHello byte = 0x01

	// frameHelloOK accepts the handshake. No payload.
	frameHelloOK byte = 0x02

	// frameHelloReject refuses the handshake. No payload.
	frameHelloReject byte = 0x03

	// frameData carries one encrypted message blob.
	frameData byte = 0x10
)

// errEmptyFrame is an internal decode failure for zero-length frames.
var errEmptyFrame = errors.New("session: empty frame")

// encodeEnvelope prepends the frame type to the payload.
func encodeEnvelope(frameType byte, payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = frameType
	copy(buf[1:], payload)
	return buf
}

// decodeEnvelope splits a transport frame into type and payload.
func decodeEnvelope(frame []byte) (byte, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, errEmptyFrame
	}
	return frame[0], frame[1:], nil
}
