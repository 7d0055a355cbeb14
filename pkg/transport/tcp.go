package transport

import (
	"context"
	"net"
	"sync"

	"github.com/pion/logging"
)

// TCPListener accepts inbound framed channels over TCP. This is the host
// side of the transport provider: each accepted connection is wrapped in a
// StreamChannel and handed to the configured ChannelHandler.
type TCPListener struct {
	listener      net.Listener
	handler       ChannelHandler
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// TCPListenerConfig configures a TCPListener.
type TCPListenerConfig struct {
	// Listener is an optional pre-existing listener. If nil, a new one is
	// created on ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":0" for an ephemeral
	// port). Ignored if Listener is provided.
	ListenAddr string

	// ChannelHandler is called for each accepted channel. Required.
	ChannelHandler ChannelHandler

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCPListener creates a TCP listener with the given configuration.
func NewTCPListener(config TCPListenerConfig) (*TCPListener, error) {
	if config.ChannelHandler == nil {
		return nil, ErrNoHandler
	}

	l := &TCPListener{
		listener:      config.Listener,
		handler:       config.ChannelHandler,
		loggerFactory: config.LoggerFactory,
		closeCh:       make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport-tcp")
	}

	if l.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = listener
	}

	return l, nil
}

// Start begins accepting connections.
func (l *TCPListener) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("listening on %s", l.listener.Addr())
	}

	l.wg.Add(1)
	go l.acceptLoop()

	return nil
}

// Close stops accepting and closes the listener. Channels already handed to
// the handler stay open; their owners close them.
func (l *TCPListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	close(l.closeCh)
	err := l.listener.Close()
	l.wg.Wait()
	return err
}

// Addr returns the address the listener is bound to.
func (l *TCPListener) Addr() net.Addr {
	return l.listener.Addr()
}

// acceptLoop accepts connections until the listener closes.
func (l *TCPListener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
				continue
			}
		}

		ch, err := NewStreamChannel(StreamChannelConfig{
			Conn:          conn,
			LoggerFactory: l.loggerFactory,
		})
		if err != nil {
			conn.Close()
			continue
		}

		l.handler(ch)
	}
}

// DialTCP opens a framed channel to a peer address. The returned channel is
// not started; the caller registers handlers via Start.
func DialTCP(ctx context.Context, addr string, loggerFactory logging.LoggerFactory) (Channel, error) {
	if addr == "" {
		return nil, ErrInvalidAddress
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return NewStreamChannel(StreamChannelConfig{
		Conn:          conn,
		LoggerFactory: loggerFactory,
	})
}
