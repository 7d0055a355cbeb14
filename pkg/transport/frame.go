package transport

import (
	"encoding/binary"
	"io"
)

// MaxFrameSize is the maximum payload size in bytes for a single frame.
// Chat payloads are short; anything larger indicates a corrupt or hostile
// stream.
const MaxFrameSize = 64 * 1024

// frameHeaderSize is the length-prefix size in bytes.
const frameHeaderSize = 4

// FrameWriter writes length-prefixed frames to a stream.
// Frames are prefixed with a 4-byte big-endian payload length.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a FrameWriter over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one payload as a length-prefixed frame.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// FrameReader reads length-prefixed frames from a stream.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader creates a FrameReader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads one frame, reassembling partial reads. Returns
// ErrFrameTooLarge when the declared length exceeds MaxFrameSize.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
