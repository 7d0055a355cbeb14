package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/whisp-chat/whisp/pkg/pairing"
)

// registerMaxRetries bounds the mDNS registration retry loop. Transient
// socket errors right after a network change are common on mobile
// platforms, so a short exponential retry smooths them over.
const registerMaxRetries = 4

// MDNSServer is the interface for an active mDNS service registration.
// This allows for dependency injection in tests.
type MDNSServer interface {
	// Shutdown stops the server.
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	// Register creates a new mDNS server for the given service.
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// zeroconfServerFactory is the production implementation using grandcat/zeroconf.
type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// ChannelID is the full channel identifier to advertise. Required.
	ChannelID string

	// DeviceName is the human-readable name shown to scanning peers.
	// Optional, max 32 characters.
	DeviceName string

	// Port is the port the transport listener is bound to. Required.
	Port int

	// Interfaces specifies which network interfaces to advertise on.
	// If nil, all multicast-capable interfaces are used.
	Interfaces []net.Interface

	// ServerFactory is the factory for creating mDNS servers.
	// If nil, the default zeroconf factory is used.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes a channel's DNS-SD service to the local network.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu           sync.RWMutex
	server       MDNSServer
	instanceName string
	closed       bool
}

// NewAdvertiser creates a new Advertiser with the given configuration.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.ChannelID == "" {
		return nil, ErrInvalidChannelID
	}
	if len(config.DeviceName) > MaxDeviceNameLength {
		return nil, ErrInvalidDeviceName
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, ErrInvalidPort
	}

	factory := config.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}

	a := &Advertiser{
		config:  config,
		factory: factory,
	}

	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}

	return a, nil
}

// Start begins advertising the channel. The service is registered under
// a fresh random instance name with a channel-specific subtype so peers
// can browse for exactly this channel.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}

	instanceName, err := GenerateInstanceName()
	if err != nil {
		return fmt.Errorf("discovery: failed to generate instance name: %w", err)
	}

	// grandcat/zeroconf parses comma-separated subtypes and creates the
	// matching DNS-SD PTR records (_C<short>._sub._whisp._tcp.local.).
	service := ServiceWhisp + "," + ChannelSubtype(pairing.ShortID(a.config.ChannelID))
	txtRecords := EncodeTXT(a.config.ChannelID, a.config.DeviceName)

	if a.log != nil {
		a.log.Debugf("registering mDNS service: instance=%s service=%s port=%d",
			instanceName, service, a.config.Port)
		a.log.Tracef("TXT records: %v", txtRecords)
	}

	server, err := a.registerWithRetry(instanceName, service, txtRecords)
	if err != nil {
		return classifyPlatformError(err)
	}

	if a.log != nil {
		a.log.Infof("advertising channel %s as %s", a.config.ChannelID, instanceName)
	}

	a.server = server
	a.instanceName = instanceName
	return nil
}

// registerWithRetry registers the service, retrying transient failures
// with exponential backoff.
func (a *Advertiser) registerWithRetry(instance, service string, txt []string) (MDNSServer, error) {
	var server MDNSServer

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	operation := func() error {
		var err error
		server, err = a.factory.Register(
			instance,
			service,
			DefaultDomain,
			a.config.Port,
			txt,
			a.config.Interfaces,
		)
		if err != nil && a.log != nil {
			a.log.Warnf("mDNS registration attempt failed: %v", err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, registerMaxRetries)); err != nil {
		return nil, fmt.Errorf("discovery: mDNS registration failed: %w", err)
	}
	return server, nil
}

// Stop withdraws the advertisement. The advertiser can be started again.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server == nil {
		return ErrNotStarted
	}

	a.server.Shutdown()
	a.server = nil
	a.instanceName = ""
	return nil
}

// Close stops any active advertisement and closes the advertiser.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	a.closed = true
	return nil
}

// IsAdvertising returns true while the channel is being advertised.
func (a *Advertiser) IsAdvertising() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.server != nil
}

// InstanceName returns the active instance name, or empty when stopped.
func (a *Advertiser) InstanceName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.instanceName
}

// classifyPlatformError maps OS-level permission failures to
// ErrPermissionDenied so callers can degrade gracefully.
func classifyPlatformError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
