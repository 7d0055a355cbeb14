package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without
// real network I/O. It allows registering service entries and simulating
// discovery responses.
type MockMDNSResolver struct {
	// BrowseErr, when set, is returned by Browse without delivering
	// any entries.
	BrowseErr error

	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers an entry returned by browses of service.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// ClearServices removes all registered entries.
func (m *MockMDNSResolver) ClearServices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string][]*zeroconf.ServiceEntry)
}

// Browse implements MDNSResolver. All registered entries for the service
// are delivered, then the channel is closed to signal end of browse.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	if m.BrowseErr != nil {
		return m.BrowseErr
	}

	m.mu.RLock()
	svcEntries := make([]*zeroconf.ServiceEntry, len(m.services[service]))
	copy(svcEntries, m.services[service])
	m.mu.RUnlock()

	go func() {
		defer close(entries)
		for _, entry := range svcEntries {
			select {
			case entries <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// MockMDNSServer is a no-network MDNSServer that records shutdowns.
type MockMDNSServer struct {
	mu       sync.Mutex
	shutdown bool
}

// Shutdown implements MDNSServer.
func (s *MockMDNSServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

// IsShutdown reports whether Shutdown was called.
func (s *MockMDNSServer) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// MockRegistration captures the arguments of one Register call.
type MockRegistration struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	TXT      []string
}

// MockServerFactory is an MDNSServerFactory that records registrations
// and can be made to fail a configurable number of times.
type MockServerFactory struct {
	// FailTimes makes the first N Register calls return FailErr.
	FailTimes int

	// FailErr is the error returned while FailTimes is positive.
	FailErr error

	mu            sync.Mutex
	registrations []MockRegistration
	servers       []*MockMDNSServer
}

// Register implements MDNSServerFactory.
func (f *MockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailTimes > 0 {
		f.FailTimes--
		return nil, f.FailErr
	}

	f.registrations = append(f.registrations, MockRegistration{
		Instance: instance,
		Service:  service,
		Domain:   domain,
		Port:     port,
		TXT:      txt,
	})
	server := &MockMDNSServer{}
	f.servers = append(f.servers, server)
	return server, nil
}

// Registrations returns a copy of all successful registrations.
func (f *MockServerFactory) Registrations() []MockRegistration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]MockRegistration, len(f.registrations))
	copy(out, f.registrations)
	return out
}

// Servers returns the servers handed out so far.
func (f *MockServerFactory) Servers() []*MockMDNSServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockMDNSServer, len(f.servers))
	copy(out, f.servers)
	return out
}

// MockPeerEntry builds a service entry for a peer advertising channelID.
func MockPeerEntry(instanceName, channelID, deviceName string, port int, ip net.IP) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instanceName,
			Service:  ServiceWhisp,
			Domain:   DefaultDomain,
		},
		HostName: instanceName + ".local.",
		Port:     port,
		Text:     EncodeTXT(channelID, deviceName),
	}
	if ip4 := ip.To4(); ip4 != nil {
		entry.AddrIPv4 = []net.IP{ip}
	} else {
		entry.AddrIPv6 = []net.IP{ip}
	}
	return entry
}
