package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// MemoryAddr implements net.Addr for in-memory endpoints.
type MemoryAddr struct {
	// Name is the listener name the endpoint is attached to.
	Name string
}

// Network returns "mem".
func (a MemoryAddr) Network() string { return "mem" }

// String returns the endpoint name.
func (a MemoryAddr) String() string { return a.Name }

// memoryLink is one dialed point-to-point link. It wraps a pion test.Bridge
// and pumps queued packets in a background goroutine. Closing either end
// severs the whole link, so both read loops observe the disconnect.
type memoryLink struct {
	bridge *test.Bridge
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// linkProcessInterval is how often the pump delivers queued packets.
const linkProcessInterval = time.Millisecond

func newMemoryLink() *memoryLink {
	l := &memoryLink{
		bridge: test.NewBridge(),
		stopCh: make(chan struct{}),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(linkProcessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.bridge.Tick()
			}
		}
	}()

	return l
}

// sever drains remaining packets and closes both endpoints.
func (l *memoryLink) sever() {
	l.once.Do(func() {
		// Flush anything already queued before cutting the wire.
		for l.bridge.Tick() > 0 {
		}
		close(l.stopCh)
		l.bridge.GetConn0().Close()
		l.bridge.GetConn1().Close()
	})
}

// Network is an in-memory transport provider: a registry of named
// listeners that dialers connect to. It stands in for the platform
// short-range transport in tests and exercises the same StreamChannel
// framing as the TCP provider.
type Network struct {
	loggerFactory logging.LoggerFactory

	mu        sync.Mutex
	listeners map[string]ChannelHandler
	links     []*memoryLink
	closed    bool
}

// NetworkConfig configures a memory Network.
type NetworkConfig struct {
	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewNetwork creates an empty memory network.
func NewNetwork(config NetworkConfig) *Network {
	return &Network{
		loggerFactory: config.LoggerFactory,
		listeners:     make(map[string]ChannelHandler),
	}
}

// Listen registers a named endpoint. Inbound channels are handed to handler.
func (n *Network) Listen(name string, handler ChannelHandler) error {
	if name == "" {
		return ErrInvalidAddress
	}
	if handler == nil {
		return ErrNoHandler
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if _, exists := n.listeners[name]; exists {
		return ErrAddressInUse
	}
	n.listeners[name] = handler
	return nil
}

// Unlisten removes a named endpoint. Established links stay up.
func (n *Network) Unlisten(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, name)
}

// Dial connects to a named endpoint. The listener's ChannelHandler receives
// the peer channel; the dialer receives the returned channel. Neither is
// started.
func (n *Network) Dial(ctx context.Context, name string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	handler, ok := n.listeners[name]
	if !ok {
		n.mu.Unlock()
		return nil, ErrPeerNotFound
	}

	link := newMemoryLink()
	n.links = append(n.links, link)
	n.mu.Unlock()

	dialConn := &memoryConn{Conn: link.bridge.GetConn0(), local: MemoryAddr{Name: "dialer"}, remote: MemoryAddr{Name: name}}
	acceptConn := &memoryConn{Conn: link.bridge.GetConn1(), local: MemoryAddr{Name: name}, remote: MemoryAddr{Name: "dialer"}}

	dialCh, err := NewStreamChannel(StreamChannelConfig{Conn: dialConn, LoggerFactory: n.loggerFactory})
	if err != nil {
		link.sever()
		return nil, err
	}
	acceptCh, err := NewStreamChannel(StreamChannelConfig{Conn: acceptConn, LoggerFactory: n.loggerFactory})
	if err != nil {
		link.sever()
		return nil, err
	}

	// Either endpoint closing kills the whole link, like a severed wire.
	dialCh.onLinkClose = link.sever
	acceptCh.onLinkClose = link.sever

	// Deliver asynchronously so Dial never deadlocks against the handler.
	go handler(acceptCh)

	return dialCh, nil
}

// Close severs every link and drops all listeners.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	n.closed = true
	links := n.links
	n.links = nil
	n.listeners = make(map[string]ChannelHandler)
	n.mu.Unlock()

	for _, l := range links {
		l.sever()
		l.wg.Wait()
	}
	return nil
}

// memoryConn overrides the bridge connection's addresses with named ones.
type memoryConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

func (c *memoryConn) LocalAddr() net.Addr  { return c.local }
func (c *memoryConn) RemoteAddr() net.Addr { return c.remote }
