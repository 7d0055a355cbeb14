// Package discovery implements DNS-SD (mDNS) discovery of chat peers.
//
// A peer advertising a channel publishes a _whisp._tcp service instance
// whose TXT records carry the channel identifier. Dialers browse a
// channel-specific subtype so unrelated instances never hit the wire,
// then verify the full channel identifier from the TXT records.
package discovery

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNS-SD service constants.
const (
	// ServiceWhisp is the DNS-SD service type for chat peers.
	ServiceWhisp = "_whisp._tcp"

	// DefaultDomain is the default mDNS domain.
	DefaultDomain = "local."

	// ProtocolVersion is advertised in the "v" TXT record.
	ProtocolVersion = "1"
)

// TXT record keys.
const (
	// TXTKeyChannelID carries the full channel identifier.
	TXTKeyChannelID = "cid"

	// TXTKeyDeviceName carries the human-readable device name.
	TXTKeyDeviceName = "dn"

	// TXTKeyVersion carries the protocol version.
	TXTKeyVersion = "v"
)

// MaxDeviceNameLength is the maximum advertised device name length.
const MaxDeviceNameLength = 32

// ChannelSubtype returns the DNS-SD subtype used to browse for a
// specific channel. Only the short prefix of the channel identifier is
// exposed in the subtype; dialers verify the full identifier from the
// TXT records after resolution.
// Format: "_C<first identifier group>".
func ChannelSubtype(shortID string) string {
	return "_C" + shortID
}

// ParseTXT parses DNS-SD TXT records into a key-value map. Records
// without an '=' separator are ignored.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string, len(records))
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}

// EncodeTXT builds the TXT records advertised for a channel.
func EncodeTXT(channelID, deviceName string) []string {
	txt := []string{
		TXTKeyChannelID + "=" + channelID,
		TXTKeyVersion + "=" + ProtocolVersion,
	}
	if deviceName != "" {
		txt = append(txt, TXTKeyDeviceName+"="+deviceName)
	}
	return txt
}

// GenerateInstanceName generates a random 64-bit DNS-SD instance name.
// Format: 16 uppercase hex characters. A fresh name per advertisement
// avoids leaking a stable device identity on the local network.
func GenerateInstanceName() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", binary.BigEndian.Uint64(buf[:])), nil
}

// SortIPsByPreference sorts resolved addresses by dialing preference.
// Priority order (highest to lowest):
//  1. IPv4 (most reliably routable on home LANs)
//  2. IPv6 global unicast
//  3. IPv6 unique-local (fc00::/7)
//  4. IPv6 link-local (fe80::/10)
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the dialing priority of an address (lower is better).
func ipPriority(ip net.IP) int {
	if ip.To16() == nil {
		return 99
	}

	if ip.To4() != nil {
		if ip.IsLoopback() {
			return 80
		}
		return 0
	}

	switch {
	case ip.IsLoopback():
		return 80
	case ip.IsMulticast():
		return 90
	case isUniqueLocal(ip):
		return 2
	case ip.IsLinkLocalUnicast():
		return 3
	case ip.IsGlobalUnicast():
		return 1
	}
	return 10
}

// isUniqueLocal reports whether ip is in the IPv6 ULA range fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil {
		return false
	}
	return ip[0] == 0xfc || ip[0] == 0xfd
}
