package transport

import (
	"io"
	"net"
	"sync"

	"github.com/pion/logging"
)

// PayloadHandler is called for each payload received on a channel.
type PayloadHandler func(payload []byte)

// DisconnectHandler is called exactly once when a channel's underlying link
// goes down, whether torn down locally or by the remote peer.
type DisconnectHandler func()

// ChannelHandler is called for each inbound channel a listener accepts.
// The channel is not started; the handler decides whether to Start it.
type ChannelHandler func(ch Channel)

// Channel is an open bidirectional byte pipe to one remote peer. A Channel
// is valid from Start until its disconnect notification fires; after that
// every Send fails with ErrClosed.
type Channel interface {
	// Start registers the handlers and begins delivering inbound payloads.
	// onPayload is required; onDisconnect may be nil.
	Start(onPayload PayloadHandler, onDisconnect DisconnectHandler) error

	// Send writes one payload as a frame and returns once the write is
	// handed to the platform.
	Send(payload []byte) error

	// Close tears the channel down. Idempotent; safe to call after the
	// disconnect notification has fired.
	Close() error

	// RemoteAddr identifies the remote endpoint.
	RemoteAddr() net.Addr
}

// StreamChannel frames payloads over a stream-oriented net.Conn.
// Used by both the TCP provider and the in-memory provider.
type StreamChannel struct {
	conn   net.Conn
	reader *FrameReader
	writer *FrameWriter
	log    logging.LeveledLogger

	// onLinkClose, when set, tears down the whole link rather than just
	// this endpoint (memory pipes die as a unit, like a severed wire).
	onLinkClose func()

	writeMu sync.Mutex

	mu           sync.Mutex
	started      bool
	closed       bool
	onPayload    PayloadHandler
	onDisconnect DisconnectHandler

	disconnectOnce sync.Once
	wg             sync.WaitGroup
}

// StreamChannelConfig configures a StreamChannel.
type StreamChannelConfig struct {
	// Conn is the underlying stream connection. Required.
	Conn net.Conn

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewStreamChannel wraps a stream connection in a framed Channel.
func NewStreamChannel(config StreamChannelConfig) (*StreamChannel, error) {
	if config.Conn == nil {
		return nil, ErrInvalidAddress
	}

	c := &StreamChannel{
		conn:   config.Conn,
		reader: NewFrameReader(config.Conn),
		writer: NewFrameWriter(config.Conn),
	}

	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}

	return c, nil
}

// Start implements Channel.
func (c *StreamChannel) Start(onPayload PayloadHandler, onDisconnect DisconnectHandler) error {
	if onPayload == nil {
		return ErrNoHandler
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.onPayload = onPayload
	c.onDisconnect = onDisconnect
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

// Send implements Channel.
func (c *StreamChannel) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteFrame(payload)
}

// Close implements Channel.
func (c *StreamChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.onLinkClose != nil {
		c.onLinkClose()
	}
	err := c.conn.Close()
	c.fireDisconnect()
	return err
}

// RemoteAddr implements Channel.
func (c *StreamChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// readLoop delivers inbound frames until the connection dies.
func (c *StreamChannel) readLoop() {
	defer c.wg.Done()

	for {
		payload, err := c.reader.ReadFrame()
		if err != nil {
			if err != io.EOF && c.log != nil {
				c.log.Debugf("read loop ended: %v", err)
			}
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			c.conn.Close()
			c.fireDisconnect()
			return
		}

		c.mu.Lock()
		handler := c.onPayload
		c.mu.Unlock()
		handler(payload)
	}
}

// fireDisconnect invokes the disconnect handler exactly once per channel.
func (c *StreamChannel) fireDisconnect() {
	c.disconnectOnce.Do(func() {
		c.mu.Lock()
		handler := c.onDisconnect
		c.mu.Unlock()
		if handler != nil {
			handler()
		}
	})
}

// Verify StreamChannel implements Channel.
var _ Channel = (*StreamChannel)(nil)
