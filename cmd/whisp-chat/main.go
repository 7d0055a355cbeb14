// whisp-chat is a terminal chat client that pairs two devices on the
// local network from a shared secret.
//
// Both users type the same secret; the devices derive a rendezvous
// channel and a symmetric key from it, find each other over mDNS and
// exchange end-to-end encrypted messages over TCP.
//
// Usage:
//
//	whisp-chat -mode host [-secret phrase]   wait for a peer (prints a
//	                                         generated secret if omitted)
//	whisp-chat -mode join -secret phrase     find and dial the host
//	whisp-chat -mode scan -secret phrase     list all nearby peers and
//	                                         pick one by hand
//	whisp-chat -mode echo -secret phrase     offline loop-back mode
//
// Options:
//
//	-secret   Shared secret phrase
//	-name     Device name shown to scanning peers (default: hostname)
//	-port     TCP port to listen on when hosting (default: ephemeral)
//	-timeout  Discovery/connect timeout (default: 30s)
//	-verbose  Enable debug logging
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/whisp-chat/whisp/pkg/chat"
	"github.com/whisp-chat/whisp/pkg/discovery"
	"github.com/whisp-chat/whisp/pkg/pairing"
	"github.com/whisp-chat/whisp/pkg/transport"
)

func main() {
	var (
		mode    = flag.String("mode", "join", "host, join, scan or echo")
		secret  = flag.String("secret", "", "shared secret phrase")
		name    = flag.String("name", "", "device name shown to peers (default: hostname)")
		port    = flag.Int("port", 0, "TCP port to listen on when hosting (default: ephemeral)")
		timeout = flag.Duration("timeout", 30*time.Second, "discovery/connect timeout")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if err := run(*mode, *secret, *name, *port, *timeout, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(mode, secret, name string, port int, timeout time.Duration, verbose bool) error {
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		} else {
			name = "whisp-device"
		}
	}

	if secret == "" {
		if mode != "host" {
			return fmt.Errorf("-secret is required for mode %q", mode)
		}
		generated, err := pairing.GenerateSecret()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		secret = generated
		fmt.Printf("Generated secret: %s\n", secret)
		fmt.Println("Share it with your peer, then have them run: whisp-chat -mode join -secret", secret)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelError
	}

	discoverer, err := discovery.NewDiscoverer(discovery.DiscovererConfig{
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return fmt.Errorf("discovery unavailable: %w", err)
	}

	stdin := bufio.NewScanner(os.Stdin)

	client := chat.NewClient(chat.Config{
		DeviceName: name,
		Discoverer: discoverer,
		Dial: func(ctx context.Context, addr string) (transport.Channel, error) {
			return transport.DialTCP(ctx, addr, loggerFactory)
		},
		Listen: func(handler transport.ChannelHandler) (chat.TransportListener, error) {
			return transport.NewTCPListener(transport.TCPListenerConfig{
				ListenAddr:     fmt.Sprintf(":%d", port),
				ChannelHandler: handler,
				LoggerFactory:  loggerFactory,
			})
		},
		NewAdvertiser: func(channelID string, advertisePort int) (*discovery.Advertiser, error) {
			return discovery.NewAdvertiser(discovery.AdvertiserConfig{
				ChannelID:     channelID,
				DeviceName:    name,
				Port:          advertisePort,
				LoggerFactory: loggerFactory,
			})
		},
		PeerSelector:  promptPeerSelection(stdin),
		LoggerFactory: loggerFactory,
		Callbacks: chat.Callbacks{
			OnStateChanged: func(state chat.ConnectionState) {
				fmt.Printf("-- %s\n", state)
			},
			OnMessage: printMessage,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch mode {
	case "host":
		err = client.HostWithSecret(connectCtx, secret)
	case "join":
		err = client.ConnectWithSecret(connectCtx, secret)
	case "scan":
		err = client.ConnectByScanning(connectCtx, secret)
	case "echo":
		err = client.ConnectEcho(secret)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}
	defer client.Disconnect()

	fmt.Println("Type a message and press enter. /quit to exit.")
	return readLoop(ctx, stdin, client)
}

// readLoop forwards stdin lines to the client until EOF, /quit, a
// signal, or the session ending.
func readLoop(ctx context.Context, stdin *bufio.Scanner, client *chat.Client) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return nil
			}
			if err := client.SendChat(line); err != nil {
				if err == chat.ErrNotConnected {
					fmt.Println("-- the conversation has ended")
					return nil
				}
				fmt.Println("-- send failed:", err)
			}
		}
	}
}

// printMessage renders one log entry.
func printMessage(msg chat.Message) {
	stamp := msg.Time.Format("15:04:05")
	switch msg.Direction {
	case chat.DirectionSent:
		fmt.Printf("[%s] you: %s\n", stamp, msg.Text)
	case chat.DirectionReceived:
		fmt.Printf("[%s] peer: %s\n", stamp, msg.Text)
	default:
		fmt.Printf("[%s] %s\n", stamp, msg.Text)
	}
}

// promptPeerSelection lists scanned peers on the terminal and reads the
// user's pick.
func promptPeerSelection(stdin *bufio.Scanner) chat.PeerSelector {
	return func(ctx context.Context, peers []discovery.Peer) (*discovery.Peer, error) {
		fmt.Println("Nearby peers:")
		for i, p := range peers {
			label := p.DeviceName
			if label == "" {
				label = p.InstanceName
			}
			fmt.Printf("  %d) %s (%s)\n", i+1, label, p.Addr())
		}
		fmt.Print("Pick a peer number (empty to cancel): ")

		if !stdin.Scan() {
			return nil, chat.ErrCancelled
		}
		input := strings.TrimSpace(stdin.Text())
		if input == "" {
			return nil, chat.ErrCancelled
		}
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(peers) {
			return nil, fmt.Errorf("invalid selection %q", input)
		}
		return &peers[idx-1], nil
	}
}
