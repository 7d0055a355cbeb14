package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// chunkReader yields at most one byte per Read to exercise reassembly.
type chunkReader struct {
	data []byte
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	b[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 1024),
	}

	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	for _, p := range payloads {
		if err := w.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	r := NewFrameReader(&buf)
	for i, want := range payloads {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() #%d error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame() #%d = %d bytes, want %d bytes", i, len(got), len(want))
		}
	}

	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() after drain error = %v, want io.EOF", err)
	}
}

func TestFrameReassemblesPartialReads(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).WriteFrame([]byte("fragmented payload")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	r := NewFrameReader(&chunkReader{data: buf.Bytes()})
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(got) != "fragmented payload" {
		t.Errorf("ReadFrame() = %q, want %q", got, "fragmented payload")
	}
}

func TestFrameTooLarge(t *testing.T) {
	t.Run("write side", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewFrameWriter(&buf).WriteFrame(make([]byte, MaxFrameSize+1))
		if err != ErrFrameTooLarge {
			t.Errorf("WriteFrame() error = %v, want %v", err, ErrFrameTooLarge)
		}
		if buf.Len() != 0 {
			t.Errorf("oversize frame wrote %d bytes, want 0", buf.Len())
		}
	})

	t.Run("read side", func(t *testing.T) {
		var header [frameHeaderSize]byte
		binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
		r := NewFrameReader(bytes.NewReader(header[:]))
		if _, err := r.ReadFrame(); err != ErrFrameTooLarge {
			t.Errorf("ReadFrame() error = %v, want %v", err, ErrFrameTooLarge)
		}
	})
}
