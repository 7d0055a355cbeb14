package discovery

import (
	"net"
	"reflect"
	"regexp"
	"testing"
)

func TestChannelSubtype(t *testing.T) {
	if got := ChannelSubtype("9b2f3a41"); got != "_C9b2f3a41" {
		t.Errorf("ChannelSubtype() = %q, want %q", got, "_C9b2f3a41")
	}
}

func TestTXTRoundTrip(t *testing.T) {
	records := EncodeTXT("9b2f3a41-1234-5678-9abc-def012345678", "Kitchen Laptop")
	m := ParseTXT(records)

	if m[TXTKeyChannelID] != "9b2f3a41-1234-5678-9abc-def012345678" {
		t.Errorf("cid = %q, want full channel identifier", m[TXTKeyChannelID])
	}
	if m[TXTKeyDeviceName] != "Kitchen Laptop" {
		t.Errorf("dn = %q, want %q", m[TXTKeyDeviceName], "Kitchen Laptop")
	}
	if m[TXTKeyVersion] != ProtocolVersion {
		t.Errorf("v = %q, want %q", m[TXTKeyVersion], ProtocolVersion)
	}
}

func TestEncodeTXTOmitsEmptyDeviceName(t *testing.T) {
	m := ParseTXT(EncodeTXT("cid-value", ""))
	if _, ok := m[TXTKeyDeviceName]; ok {
		t.Error("empty device name should not be advertised")
	}
}

func TestParseTXTIgnoresMalformedRecords(t *testing.T) {
	m := ParseTXT([]string{"cid=abc", "noequals", "=leading", "dn=x=y"})
	want := map[string]string{"cid": "abc", "dn": "x=y"}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("ParseTXT() = %v, want %v", m, want)
	}
}

func TestGenerateInstanceName(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{16}$`)

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		name, err := GenerateInstanceName()
		if err != nil {
			t.Fatalf("GenerateInstanceName() error = %v", err)
		}
		if !pattern.MatchString(name) {
			t.Fatalf("instance name %q does not match %v", name, pattern)
		}
		if seen[name] {
			t.Fatalf("instance name %q repeated", name)
		}
		seen[name] = true
	}
}

func TestSortIPsByPreference(t *testing.T) {
	ipv4 := net.ParseIP("192.168.1.20")
	globalV6 := net.ParseIP("2001:db8::1")
	ula := net.ParseIP("fd12:3456::1")
	linkLocal := net.ParseIP("fe80::1")
	loopback := net.ParseIP("127.0.0.1")

	got := SortIPsByPreference([]net.IP{loopback, linkLocal, ula, globalV6, ipv4})

	want := []net.IP{ipv4, globalV6, ula, linkLocal, loopback}
	if len(got) != len(want) {
		t.Fatalf("got %d addresses, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("position %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSortIPsByPreferenceDoesNotMutateInput(t *testing.T) {
	input := []net.IP{net.ParseIP("fe80::1"), net.ParseIP("10.0.0.5")}
	SortIPsByPreference(input)
	if !input[0].Equal(net.ParseIP("fe80::1")) {
		t.Error("input slice was reordered")
	}
}
