package session

import (
	"context"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/whisp-chat/whisp/pkg/msgcipher"
	"github.com/whisp-chat/whisp/pkg/pairing"
	"github.com/whisp-chat/whisp/pkg/transport"
)

// Defaults applied when Config leaves the timing fields zero.
const (
	// DefaultHandshakeTimeout bounds the wait for the peer's hello reply.
	DefaultHandshakeTimeout = 5 * time.Second

	// DefaultEchoDelay is how long an echo session holds a message
	// before looping it back.
	DefaultEchoDelay = 500 * time.Millisecond
)

// MessageHandler receives decrypted inbound message text.
type MessageHandler func(text string)

// StateHandler receives connection state transitions.
type StateHandler func(state State)

// Config holds configuration for a Session.
type Config struct {
	// Key is the symmetric session key derived from the shared secret.
	// Required.
	Key pairing.SessionKey

	// ChannelID is the full channel identifier both devices must share.
	// Required.
	ChannelID string

	// HandshakeTimeout bounds the hello exchange. If zero,
	// DefaultHandshakeTimeout is used.
	HandshakeTimeout time.Duration

	// EchoDelay is the loop-back delay in echo mode. If zero,
	// DefaultEchoDelay is used.
	EchoDelay time.Duration

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// handshakeSignal carries one handshake event from the read loop to the
// goroutine blocked in Connect or Accept.
type handshakeSignal struct {
	frameType byte
	payload   []byte
	err       error
}

// Session is one encrypted conversation over a transport channel. A
// session is single-use: once it reaches a terminal state it cannot be
// connected again.
type Session struct {
	cipher           *msgcipher.Cipher
	channelID        string
	handshakeTimeout time.Duration
	echoDelay        time.Duration
	log              logging.LeveledLogger

	mu            sync.Mutex
	state         State
	mode          Mode
	channel       transport.Channel
	started       bool
	onMessage     MessageHandler
	onStateChange StateHandler
	handshakeCh   chan handshakeSignal

	endOnce sync.Once
	echoWG  sync.WaitGroup
}

// NewSession creates a session from the pairing material. The session
// starts in the idle state; call Connect, Accept or StartEcho to use it.
func NewSession(config Config) (*Session, error) {
	if config.ChannelID == "" {
		return nil, ErrInvalidChannelID
	}

	cipher, err := msgcipher.New(config.Key)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cipher:           cipher,
		channelID:        config.ChannelID,
		handshakeTimeout: config.HandshakeTimeout,
		echoDelay:        config.EchoDelay,
		state:            StateIdle,
		mode:             ModeChannel,
	}
	if s.handshakeTimeout == 0 {
		s.handshakeTimeout = DefaultHandshakeTimeout
	}
	if s.echoDelay == 0 {
		s.echoDelay = DefaultEchoDelay
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}

	return s, nil
}

// OnMessage registers the handler for decrypted inbound messages.
// Register before connecting.
func (s *Session) OnMessage(handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = handler
}

// OnStateChange registers the handler for state transitions.
// Register before connecting.
func (s *Session) OnStateChange(handler StateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = handler
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns how a connected session carries messages.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Connect runs the dialer side of the channel hello over ch. On accept
// the session is connected in channel mode. On reject the channel is
// torn down and the session degrades to echo mode, still reporting
// connected, so the user keeps a working conversation surface.
func (s *Session) Connect(ctx context.Context, ch transport.Channel) error {
	if err := s.beginHandshake(ch); err != nil {
		return err
	}

	if err := ch.Start(s.handlePayload, s.handleTransportDisconnect); err != nil {
		return s.fail(err)
	}
	if err := ch.Send(encodeEnvelope(frameHello, []byte(s.channelID))); err != nil {
		return s.fail(err)
	}

	sig, err := s.awaitHandshake(ctx)
	if err != nil {
		return s.fail(err)
	}

	switch sig.frameType {
	case frameHelloOK:
		s.becomeConnected(ModeChannel)
		if s.log != nil {
			s.log.Infof("connected to %v", ch.RemoteAddr())
		}
		return nil
	case frameHelloReject:
		if s.log != nil {
			s.log.Warnf("peer rejected channel, degrading to echo mode")
		}
		s.detachChannel()
		s.becomeConnected(ModeEcho)
		return nil
	default:
		return s.fail(ErrRejected)
	}
}

// Accept runs the host side of the channel hello over ch. The dialer's
// advertised channel identifier must match ours exactly; a mismatch is
// answered with a reject frame and reported as ErrRejected.
func (s *Session) Accept(ctx context.Context, ch transport.Channel) error {
	if err := s.beginHandshake(ch); err != nil {
		return err
	}

	if err := ch.Start(s.handlePayload, s.handleTransportDisconnect); err != nil {
		return s.fail(err)
	}

	sig, err := s.awaitHandshake(ctx)
	if err != nil {
		return s.fail(err)
	}
	if sig.frameType != frameHello {
		return s.fail(ErrRejected)
	}

	if string(sig.payload) != s.channelID {
		if s.log != nil {
			s.log.Warnf("rejecting dialer: channel mismatch")
		}
		ch.Send(encodeEnvelope(frameHelloReject, nil)) //nolint:errcheck
		return s.fail(ErrRejected)
	}

	// Flip to connected before replying so a data frame racing right
	// behind the accept is not dropped.
	s.becomeConnected(ModeChannel)
	if err := ch.Send(encodeEnvelope(frameHelloOK, nil)); err != nil {
		return s.fail(err)
	}
	if s.log != nil {
		s.log.Infof("accepted peer %v", ch.RemoteAddr())
	}
	return nil
}

// StartEcho connects the session in echo mode without any peer. Used
// when no transport to a real peer is available at all.
func (s *Session) StartEcho() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.becomeConnected(ModeEcho)
	return nil
}

// Send encrypts text and delivers it: over the wire in channel mode, or
// back through the message handler after the echo delay in echo mode.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	mode := s.mode
	ch := s.channel
	s.mu.Unlock()

	blob, err := s.cipher.Encrypt(text)
	if err != nil {
		return err
	}

	if mode == ModeEcho {
		s.echoWG.Add(1)
		go func() {
			defer s.echoWG.Done()
			time.Sleep(s.echoDelay)
			if s.State() != StateConnected {
				return
			}
			s.deliver([]byte(blob))
		}()
		return nil
	}

	return ch.Send(encodeEnvelope(frameData, []byte(blob)))
}

// Disconnect ends the session. Safe to call multiple times and from any
// state; only the first call transitions and notifies.
func (s *Session) Disconnect() {
	s.end(StateDisconnected)
}

// beginHandshake claims the session for a connection attempt.
func (s *Session) beginHandshake(ch transport.Channel) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.channel = ch
	s.handshakeCh = make(chan handshakeSignal, 1)
	s.state = StateConnecting
	handler := s.onStateChange
	s.mu.Unlock()

	if handler != nil {
		handler(StateConnecting)
	}
	return nil
}

// awaitHandshake blocks until a handshake frame, cancellation or timeout.
func (s *Session) awaitHandshake(ctx context.Context) (handshakeSignal, error) {
	s.mu.Lock()
	hch := s.handshakeCh
	s.mu.Unlock()

	timer := time.NewTimer(s.handshakeTimeout)
	defer timer.Stop()

	select {
	case sig := <-hch:
		if sig.err != nil {
			return handshakeSignal{}, sig.err
		}
		return sig, nil
	case <-ctx.Done():
		return handshakeSignal{}, ctx.Err()
	case <-timer.C:
		return handshakeSignal{}, ErrHandshakeTimeout
	}
}

// becomeConnected transitions to the connected state in the given mode.
func (s *Session) becomeConnected(mode Mode) {
	s.mu.Lock()
	s.state = StateConnected
	s.mode = mode
	handler := s.onStateChange
	s.mu.Unlock()

	if handler != nil {
		handler(StateConnected)
	}
}

// detachChannel closes and forgets the transport channel without ending
// the session. Used when degrading to echo mode.
func (s *Session) detachChannel() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

// fail moves the session to the failed terminal state and returns err.
func (s *Session) fail(err error) error {
	s.endOnce.Do(func() {
		s.mu.Lock()
		ch := s.channel
		s.channel = nil
		s.state = StateFailed
		handler := s.onStateChange
		s.mu.Unlock()

		if ch != nil {
			ch.Close()
		}
		if handler != nil {
			handler(StateFailed)
		}
	})
	return err
}

// end moves the session to a terminal state exactly once.
func (s *Session) end(next State) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		ch := s.channel
		s.channel = nil
		s.state = next
		handler := s.onStateChange
		s.mu.Unlock()

		if ch != nil {
			ch.Close()
		}
		if handler != nil {
			handler(next)
		}
		if s.log != nil {
			s.log.Infof("session ended: %s", next)
		}
	})
}

// handlePayload routes one inbound transport frame.
func (s *Session) handlePayload(p []byte) {
	frameType, payload, err := decodeEnvelope(p)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("dropping empty frame")
		}
		return
	}

	s.mu.Lock()
	state := s.state
	hch := s.handshakeCh
	s.mu.Unlock()

	switch frameType {
	case frameHello, frameHelloOK, frameHelloReject:
		if state != StateConnecting || hch == nil {
			if s.log != nil {
				s.log.Debugf("dropping handshake frame 0x%02x in state %s", frameType, state)
			}
			return
		}
		select {
		case hch <- handshakeSignal{frameType: frameType, payload: payload}:
		default:
		}
	case frameData:
		if state != StateConnected {
			if s.log != nil {
				s.log.Debugf("dropping data frame in state %s", state)
			}
			return
		}
		s.deliver(payload)
	default:
		if s.log != nil {
			s.log.Debugf("dropping unknown frame type 0x%02x", frameType)
		}
	}
}

// deliver decrypts one message blob and hands it to the message handler.
// Undecryptable frames are dropped without surfacing an error to the
// user; an attacker probing the channel must learn nothing, and a
// corrupted frame must not tear down the conversation.
func (s *Session) deliver(blob []byte) {
	text, err := s.cipher.Decrypt(string(blob))
	if err != nil {
		if s.log != nil {
			s.log.Debugf("dropping undecryptable frame: %v", err)
		}
		return
	}

	s.mu.Lock()
	handler := s.onMessage
	s.mu.Unlock()

	if handler != nil {
		handler(text)
	}
}

// handleTransportDisconnect reacts to the transport channel dropping.
func (s *Session) handleTransportDisconnect() {
	s.mu.Lock()
	state := s.state
	mode := s.mode
	hch := s.handshakeCh
	s.mu.Unlock()

	switch {
	case state == StateConnecting:
		if hch != nil {
			select {
			case hch <- handshakeSignal{err: ErrHandshakeClosed}:
			default:
			}
		}
	case state == StateConnected && mode == ModeChannel:
		if s.log != nil {
			s.log.Infof("peer disconnected")
		}
		s.end(StateDisconnected)
	}
}
