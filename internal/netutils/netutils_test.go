package netutils

import (
	"net/netip"
	"testing"

	"github.com/companyzero/voicerelay/internal/assert"
)

// TestResolveAddrPort tests parsing remote addresses.
func TestResolveAddrPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host    string
		port    string
		want    netip.AddrPort
		wantErr bool
	}{
		{host: "127.0.0.1", port: "7000", want: netip.MustParseAddrPort("127.0.0.1:7000")},
		{host: "::1", port: "7000", want: netip.MustParseAddrPort("[::1]:7000")},
		{host: "::ffff:10.0.0.1", port: "1", want: netip.MustParseAddrPort("10.0.0.1:1")},
		{host: "fe80::1%eth0", port: "9", want: netip.MustParseAddrPort("[fe80::1]:9")},
		{host: "127.0.0.1", port: "0", wantErr: true},
		{host: "127.0.0.1", port: "70000", wantErr: true},
		{host: "127.0.0.1", port: "port", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.host+":"+tc.port, func(t *testing.T) {
			got, err := ResolveAddrPort(tc.host, tc.port)
			if tc.wantErr {
				assert.NonNilErr(t, err)
				return
			}
			assert.NilErr(t, err)
			assert.DeepEqual(t, got, tc.want)
		})
	}
}

// TestLocalIPv4Addrs asserts no loopback or IPv6 addresses are returned.
func TestLocalIPv4Addrs(t *testing.T) {
	addrs, err := LocalIPv4Addrs()
	assert.NilErr(t, err)
	for _, addr := range addrs {
		if !addr.Is4() || addr.IsLoopback() {
			t.Fatalf("unexpected address %s", addr)
		}
	}
}
