package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/whisp-chat/whisp/pkg/pairing"
)

// DefaultDiscoverTimeout bounds a targeted channel discovery.
const DefaultDiscoverTimeout = 10 * time.Second

// DefaultScanWindow is how long an open-ended scan collects peers.
const DefaultScanWindow = 5 * time.Second

// Peer describes a discovered chat peer.
type Peer struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// DeviceName is the advertised human-readable name, if any.
	DeviceName string

	// ChannelID is the full channel identifier from the TXT records.
	ChannelID string

	// Port is the peer's transport port.
	Port int

	// IPs contains the resolved addresses, sorted by dialing preference.
	IPs []net.IP
}

// PreferredIP returns the most preferred address, or nil if none resolved.
func (p *Peer) PreferredIP() net.IP {
	if len(p.IPs) > 0 {
		return p.IPs[0]
	}
	return nil
}

// Addr returns the preferred "host:port" dial address, or empty if no
// address resolved.
func (p *Peer) Addr() string {
	ip := p.PreferredIP()
	if ip == nil {
		return ""
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(p.Port))
}

// MDNSResolver is the interface for mDNS service resolution.
// This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse browses for services of the given type. On success the
	// resolver owns entries and closes it when the browse terminates;
	// on error the channel is left untouched.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

// DiscovererConfig holds configuration for the Discoverer.
type DiscovererConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// DiscoverTimeout bounds DiscoverByChannel when the caller's context
	// has no deadline. If zero, DefaultDiscoverTimeout is used.
	DiscoverTimeout time.Duration

	// ScanWindow bounds DiscoverAny when the caller's context has no
	// deadline. If zero, DefaultScanWindow is used.
	ScanWindow time.Duration

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Discoverer finds chat peers via DNS-SD.
type Discoverer struct {
	config   DiscovererConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewDiscoverer creates a new Discoverer with the given configuration.
func NewDiscoverer(config DiscovererConfig) (*Discoverer, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, classifyPlatformError(err)
		}
		resolver = zr
	}

	if config.DiscoverTimeout == 0 {
		config.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if config.ScanWindow == 0 {
		config.ScanWindow = DefaultScanWindow
	}

	d := &Discoverer{
		config:   config,
		resolver: resolver,
	}

	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("discovery")
	}

	return d, nil
}

// DiscoverByChannel finds the first peer advertising the given channel.
// The browse is narrowed with the channel subtype, then each candidate's
// full channel identifier is verified from the TXT records before it is
// accepted. Returns ErrNotFound when the deadline passes with no match.
func (d *Discoverer) DiscoverByChannel(ctx context.Context, channelID string) (*Peer, error) {
	if channelID == "" {
		return nil, ErrInvalidChannelID
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DiscoverTimeout)
		defer cancel()
	}

	service := ChannelSubtype(pairing.ShortID(channelID)) + "._sub." + ServiceWhisp
	entries := d.browse(ctx, service)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, d.endOfBrowse(ctx)
			}
			peer := entryToPeer(entry)
			// Subtype collisions are possible: the subtype only carries
			// the identifier's short prefix.
			if peer.ChannelID != channelID {
				if d.log != nil {
					d.log.Debugf("ignoring peer %s: channel mismatch", peer.InstanceName)
				}
				continue
			}
			return &peer, nil
		case <-ctx.Done():
			return nil, d.endOfBrowse(ctx)
		}
	}
}

// DiscoverAny scans for every chat peer on the network, collecting until
// the scan window closes. Peers are deduplicated by instance name.
func (d *Discoverer) DiscoverAny(ctx context.Context) ([]Peer, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ScanWindow)
		defer cancel()
	}

	entries := d.browse(ctx, ServiceWhisp)

	var peers []Peer
	seen := make(map[string]bool)
	for entry := range entries {
		peer := entryToPeer(entry)
		if seen[peer.InstanceName] {
			continue
		}
		seen[peer.InstanceName] = true
		peers = append(peers, peer)
	}

	if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
		return nil, err
	}
	return peers, nil
}

// browse starts a browse operation and returns its entry stream. The
// stream closes when the browse finishes or the context ends.
func (d *Discoverer) browse(ctx context.Context, service string) <-chan *zeroconf.ServiceEntry {
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := d.resolver.Browse(ctx, service, DefaultDomain, entries); err != nil {
			if d.log != nil {
				d.log.Warnf("browse failed: %v", err)
			}
			// The resolver never took ownership of the channel.
			close(entries)
		}
	}()
	return entries
}

// endOfBrowse maps a finished browse to the caller-facing error.
func (d *Discoverer) endOfBrowse(ctx context.Context) error {
	if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
		return err
	}
	return ErrNotFound
}

// entryToPeer converts a zeroconf.ServiceEntry to a Peer.
func entryToPeer(entry *zeroconf.ServiceEntry) Peer {
	allIPs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	allIPs = append(allIPs, entry.AddrIPv4...)
	allIPs = append(allIPs, entry.AddrIPv6...)

	txt := ParseTXT(entry.Text)

	return Peer{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		DeviceName:   txt[TXTKeyDeviceName],
		ChannelID:    txt[TXTKeyChannelID],
		Port:         entry.Port,
		IPs:          SortIPsByPreference(allIPs),
	}
}
