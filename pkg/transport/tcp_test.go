package transport

import (
	"context"
	"testing"
	"time"
)

func TestTCPListenerLifecycle(t *testing.T) {
	t.Run("requires handler", func(t *testing.T) {
		if _, err := NewTCPListener(TCPListenerConfig{}); err != ErrNoHandler {
			t.Errorf("NewTCPListener() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("start and close", func(t *testing.T) {
		l, err := NewTCPListener(TCPListenerConfig{
			ListenAddr:     "127.0.0.1:0",
			ChannelHandler: func(Channel) {},
		})
		if err != nil {
			t.Fatalf("NewTCPListener() error = %v", err)
		}

		if err := l.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := l.Start(); err != ErrAlreadyStarted {
			t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
		}

		if err := l.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := l.Close(); err != ErrClosed {
			t.Errorf("second Close() error = %v, want %v", err, ErrClosed)
		}
	})
}

func TestTCPExchange(t *testing.T) {
	accepted := make(chan Channel, 1)
	l, err := NewTCPListener(TCPListenerConfig{
		ListenAddr:     "127.0.0.1:0",
		ChannelHandler: func(ch Channel) { accepted <- ch },
	})
	if err != nil {
		t.Fatalf("NewTCPListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialer, err := DialTCP(ctx, l.Addr().String(), nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer dialer.Close()

	var acceptor Channel
	select {
	case acceptor = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("listener never accepted the connection")
	}
	defer acceptor.Close()

	received := make(chan []byte, 1)
	disconnected := make(chan struct{})
	if err := acceptor.Start(func(p []byte) { received <- p }, func() { close(disconnected) }); err != nil {
		t.Fatalf("acceptor Start() error = %v", err)
	}
	if err := dialer.Start(func([]byte) {}, nil); err != nil {
		t.Fatalf("dialer Start() error = %v", err)
	}

	if err := dialer.Send([]byte("over tcp")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "over tcp" {
			t.Errorf("received %q, want %q", got, "over tcp")
		}
	case <-time.After(time.Second):
		t.Fatal("payload never arrived")
	}

	// Remote teardown propagates as a disconnect notification.
	dialer.Close()
	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("acceptor never observed the disconnect")
	}
}

func TestDialTCPInvalidAddress(t *testing.T) {
	if _, err := DialTCP(context.Background(), "", nil); err != ErrInvalidAddress {
		t.Errorf("DialTCP(\"\") error = %v, want %v", err, ErrInvalidAddress)
	}
}
