package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/whisp-chat/whisp/pkg/discovery"
	"github.com/whisp-chat/whisp/pkg/pairing"
	"github.com/whisp-chat/whisp/pkg/session"
	"github.com/whisp-chat/whisp/pkg/transport"
)

// DialFunc opens a transport channel to a peer address.
type DialFunc func(ctx context.Context, addr string) (transport.Channel, error)

// ListenFunc binds a transport listener that hands inbound channels to
// handler. The returned listener is not started.
type ListenFunc func(handler transport.ChannelHandler) (TransportListener, error)

// TransportListener is the host-side transport surface the client drives.
type TransportListener interface {
	Start() error
	Close() error
	Addr() net.Addr
}

// AdvertiserFunc creates the advertisement for a hosted channel on the
// given transport port. The returned advertiser is not started.
type AdvertiserFunc func(channelID string, port int) (*discovery.Advertiser, error)

// PeerSelector prompts the user to pick one of the scanned peers.
// Returning ErrCancelled aborts the attempt back to the idle state.
type PeerSelector func(ctx context.Context, peers []discovery.Peer) (*discovery.Peer, error)

// Callbacks notify the presentation layer of client events.
type Callbacks struct {
	// OnStateChanged is called on every connection state transition.
	OnStateChanged func(state ConnectionState)

	// OnMessage is called for every message appended to the log,
	// including sent and system entries.
	OnMessage func(msg Message)
}

// Config holds configuration for a Client.
type Config struct {
	// DeviceName is advertised to scanning peers when hosting.
	DeviceName string

	// Discoverer finds peers. Required for ConnectWithSecret and
	// ConnectByScanning.
	Discoverer *discovery.Discoverer

	// Dial opens outbound transport channels. Required for
	// ConnectWithSecret and ConnectByScanning.
	Dial DialFunc

	// Listen binds the host-side transport listener. Required for
	// HostWithSecret.
	Listen ListenFunc

	// NewAdvertiser creates the channel advertisement when hosting.
	// Required for HostWithSecret.
	NewAdvertiser AdvertiserFunc

	// PeerSelector picks a peer during ConnectByScanning.
	PeerSelector PeerSelector

	// HandshakeTimeout is passed through to sessions.
	HandshakeTimeout time.Duration

	// EchoDelay is passed through to sessions.
	EchoDelay time.Duration

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Callbacks for presentation-layer notifications.
	Callbacks Callbacks
}

// Client is the pairing orchestrator. One client holds at most one
// active session; all state is guarded by a single mutex so callbacks
// and in-flight operations observe a consistent order.
type Client struct {
	config Config
	log    logging.LeveledLogger

	mu       sync.Mutex
	state    ConnectionState
	busy     bool
	sess     *session.Session
	key      pairing.SessionKey
	messages []Message
	nextID   int64
	lastErr  error
}

// NewClient creates a client in the idle state.
func NewClient(config Config) *Client {
	c := &Client{
		config: config,
		state:  StateIdle,
		nextID: 1,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("chat")
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error recorded by the most recent failed attempt.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns a copy of the conversation log.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Mode reports how the active session carries messages. Only meaningful
// while connected.
func (c *Client) Mode() session.Mode {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return session.ModeChannel
	}
	return sess.Mode()
}

// ConnectWithSecret pairs with the peer advertising the channel derived
// from secret: derive, discover by channel, dial, handshake.
func (c *Client) ConnectWithSecret(ctx context.Context, secret string) error {
	return c.connect(ctx, secret, func(ctx context.Context, channelID string) (*discovery.Peer, error) {
		return c.config.Discoverer.DiscoverByChannel(ctx, channelID)
	})
}

// ConnectByScanning is the manual fallback: scan for every nearby peer,
// let the configured PeerSelector pick one, then connect with the
// material derived from secret. It is never invoked automatically when
// a targeted discovery fails; the user switches modes explicitly.
func (c *Client) ConnectByScanning(ctx context.Context, secret string) error {
	return c.connect(ctx, secret, func(ctx context.Context, channelID string) (*discovery.Peer, error) {
		if c.config.PeerSelector == nil {
			return nil, ErrNoPeerSelector
		}
		peers, err := c.config.Discoverer.DiscoverAny(ctx)
		if err != nil {
			return nil, err
		}
		if len(peers) == 0 {
			return nil, discovery.ErrNotFound
		}
		return c.config.PeerSelector(ctx, peers)
	})
}

// connect runs the shared dial-side flow with find supplying the peer.
func (c *Client) connect(ctx context.Context, secret string, find func(context.Context, string) (*discovery.Peer, error)) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if err := c.claim(); err != nil {
		return err
	}
	defer c.release()

	channelID, err := pairing.DeriveChannelID(secret)
	if err != nil {
		return ErrEmptySecret
	}
	key, err := pairing.DeriveSessionKey(secret)
	if err != nil {
		return ErrEmptySecret
	}

	c.setState(StateConnecting)
	c.appendSystem(fmt.Sprintf("Looking for a peer on channel %s…", pairing.ShortID(channelID)))

	peer, err := find(ctx, channelID)
	if err != nil {
		return c.connectFailed(key, err)
	}

	ch, err := c.config.Dial(ctx, peer.Addr())
	if err != nil {
		return c.connectFailed(key, err)
	}

	sess, err := c.newSession(key, channelID)
	if err != nil {
		ch.Close()
		return c.connectFailed(key, err)
	}
	if err := sess.Connect(ctx, ch); err != nil {
		return c.connectFailed(key, err)
	}

	c.adoptSession(sess, key, peerLabel(peer))
	return nil
}

// HostWithSecret advertises the channel derived from secret and waits
// for a peer to dial in. Rejected or broken handshakes keep the host
// listening; the first accepted session wins, after which advertising
// and listening stop.
func (c *Client) HostWithSecret(ctx context.Context, secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if err := c.claim(); err != nil {
		return err
	}
	defer c.release()

	channelID, err := pairing.DeriveChannelID(secret)
	if err != nil {
		return ErrEmptySecret
	}
	key, err := pairing.DeriveSessionKey(secret)
	if err != nil {
		return ErrEmptySecret
	}

	c.setState(StateConnecting)
	c.appendSystem(fmt.Sprintf("Hosting channel %s, waiting for a peer…", pairing.ShortID(channelID)))

	inbound := make(chan transport.Channel, 4)
	listener, err := c.config.Listen(func(ch transport.Channel) {
		select {
		case inbound <- ch:
		default:
			ch.Close()
		}
	})
	if err != nil {
		return c.connectFailed(key, err)
	}
	if err := listener.Start(); err != nil {
		listener.Close()
		return c.connectFailed(key, err)
	}

	advertiser, err := c.config.NewAdvertiser(channelID, addrPort(listener.Addr()))
	if err != nil {
		listener.Close()
		return c.connectFailed(key, err)
	}
	if err := advertiser.Start(); err != nil {
		listener.Close()
		return c.connectFailed(key, err)
	}

	// One session per client: once paired (or failed), stop the rendezvous.
	teardown := func() {
		advertiser.Close()
		listener.Close()
	}

	for {
		select {
		case ch := <-inbound:
			sess, err := c.newSession(key, channelID)
			if err != nil {
				ch.Close()
				teardown()
				return c.connectFailed(key, err)
			}
			if err := sess.Accept(ctx, ch); err != nil {
				if isHandshakeMiss(err) {
					if c.log != nil {
						c.log.Debugf("inbound handshake failed, keep listening: %v", err)
					}
					continue
				}
				teardown()
				return c.connectFailed(key, err)
			}
			teardown()
			c.adoptSession(sess, key, "peer")
			return nil
		case <-ctx.Done():
			teardown()
			return c.connectFailed(key, ctx.Err())
		}
	}
}

// ConnectEcho starts a local echo session: the clearly tagged degraded
// mode used when no peer transport is available at all. Messages loop
// back through the full encrypt/decrypt cycle.
func (c *Client) ConnectEcho(secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if err := c.claim(); err != nil {
		return err
	}
	defer c.release()

	channelID, err := pairing.DeriveChannelID(secret)
	if err != nil {
		return ErrEmptySecret
	}
	key, err := pairing.DeriveSessionKey(secret)
	if err != nil {
		return ErrEmptySecret
	}

	c.setState(StateConnecting)

	sess, err := c.newSession(key, channelID)
	if err != nil {
		return c.connectFailed(key, err)
	}
	if err := sess.StartEcho(); err != nil {
		return c.connectFailed(key, err)
	}

	c.adoptSession(sess, key, "")
	return nil
}

// SendChat encrypts and sends text. Blank input is a no-op; sending
// without a connected session fails with ErrNotConnected. On success a
// sent entry is appended immediately; the sender does not wait for a
// round trip to see its own message.
func (c *Client) SendChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	sess := c.sess
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || sess == nil {
		return ErrNotConnected
	}

	if err := sess.Send(text); err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			return ErrNotConnected
		}
		return err
	}

	c.append(DirectionSent, text)
	return nil
}

// Disconnect ends the active session. Calling it twice, or with no
// session at all, is harmless.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Disconnect()
}

// claim reserves the client for one connection attempt.
func (c *Client) claim() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || !c.state.CanConnect() {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Client) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// newSession builds a session wired to the client's handlers.
func (c *Client) newSession(key pairing.SessionKey, channelID string) (*session.Session, error) {
	sess, err := session.NewSession(session.Config{
		Key:              key,
		ChannelID:        channelID,
		HandshakeTimeout: c.config.HandshakeTimeout,
		EchoDelay:        c.config.EchoDelay,
		LoggerFactory:    c.config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	sess.OnMessage(c.handleIncoming)
	sess.OnStateChange(c.handleSessionState)
	return sess, nil
}

// adoptSession installs an established session and announces it.
func (c *Client) adoptSession(sess *session.Session, key pairing.SessionKey, peerName string) {
	c.mu.Lock()
	c.sess = sess
	c.key = key
	c.state = StateConnected
	c.lastErr = nil
	c.mu.Unlock()

	c.notifyState(StateConnected)

	// The peer may have hung up between handshake completion and adoption;
	// the session's notification fired before our handler could act on it.
	if sess.State() == session.StateDisconnected {
		c.handleSessionState(session.StateDisconnected)
		return
	}

	if sess.Mode() == session.ModeEcho {
		c.appendSystem("No matching peer answered. Echo mode: messages loop back to you.")
		return
	}
	if peerName != "" {
		c.appendSystem("Connected to " + peerName + ".")
	} else {
		c.appendSystem("Connected.")
	}
}

// connectFailed records a failed attempt: cancelled attempts reset to
// idle, everything else lands in the failed state with a per-kind
// status line. The derived key never outlives the attempt.
func (c *Client) connectFailed(key pairing.SessionKey, err error) error {
	key.Zero()

	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		c.mu.Lock()
		c.state = StateIdle
		c.lastErr = nil
		c.mu.Unlock()
		c.notifyState(StateIdle)
		c.appendSystem("Selection cancelled.")
		return err
	}

	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
	c.notifyState(StateFailed)
	c.appendSystem(failureText(err))
	return err
}

// failureText renders the user-facing status line per error kind.
func failureText(err error) string {
	switch {
	case errors.Is(err, discovery.ErrNotFound):
		return "No peer found for this secret. Check that both devices use the same secret."
	case errors.Is(err, discovery.ErrPermissionDenied):
		return "Local network access was denied. Allow discovery and try again."
	case errors.Is(err, session.ErrHandshakeTimeout):
		return "The peer did not answer in time."
	case errors.Is(err, session.ErrRejected):
		return "The peer is on a different channel."
	case errors.Is(err, context.DeadlineExceeded):
		return "The connection attempt timed out."
	default:
		return "Connection failed: " + err.Error()
	}
}

// handleIncoming appends every successfully decrypted inbound message.
func (c *Client) handleIncoming(text string) {
	c.append(DirectionReceived, text)
}

// handleSessionState reacts to the active session ending.
func (c *Client) handleSessionState(st session.State) {
	if st != session.StateDisconnected {
		return
	}

	c.mu.Lock()
	if c.sess == nil || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.key.Zero()
	c.key = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.notifyState(StateDisconnected)
	c.appendSystem("Disconnected.")
}

// append adds a message to the log and fires the message callback.
func (c *Client) append(direction Direction, text string) {
	c.mu.Lock()
	msg := Message{
		ID:        c.nextID,
		Direction: direction,
		Text:      text,
		Time:      time.Now(),
	}
	c.nextID++
	c.messages = append(c.messages, msg)
	cb := c.config.Callbacks.OnMessage
	c.mu.Unlock()

	if cb != nil {
		cb(msg)
	}
}

func (c *Client) appendSystem(text string) {
	c.append(DirectionSystem, text)
}

// setState transitions and notifies.
func (c *Client) setState(next ConnectionState) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	c.notifyState(next)
}

func (c *Client) notifyState(state ConnectionState) {
	if cb := c.config.Callbacks.OnStateChanged; cb != nil {
		cb(state)
	}
}

// isHandshakeMiss reports handshake failures that should not end a
// hosting loop: a stray dialer must not cost the real peer its chance.
func isHandshakeMiss(err error) bool {
	return errors.Is(err, session.ErrRejected) ||
		errors.Is(err, session.ErrHandshakeTimeout) ||
		errors.Is(err, session.ErrHandshakeClosed)
}

// peerLabel renders a short description of a discovered peer.
func peerLabel(peer *discovery.Peer) string {
	if peer.DeviceName != "" {
		return peer.DeviceName
	}
	if addr := peer.Addr(); addr != "" {
		return addr
	}
	return "peer"
}

// addrPort extracts the port from a listener address, or 0 when the
// transport has no port concept (the advertiser factory decides then).
func addrPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
