package ip

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSockAddr(t *testing.T) {
	tests := []struct {
		input   string
		addr    string
		port    uint16
		wantErr bool
	}{
		{input: "", addr: "", port: 0},
		{input: "192.168.1.1", addr: "192.168.1.1", port: 0},
		{input: "192.168.1.1:5004", addr: "192.168.1.1", port: 5004},
		{input: ":5004", addr: "", port: 5004},
		{input: "::1", addr: "::1", port: 0},
		{input: "[::1]:80", addr: "::1", port: 80},
		{input: "[fe80::1]", addr: "fe80::1", port: 0},
		{input: "[::1", wantErr: true},
		{input: "not-an-address:80", wantErr: true},
		{input: "10.0.0.1:notaport", wantErr: true},
		{input: "10.0.0.1:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sa, err := ParseSockAddr(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.addr == "" {
				assert.False(t, sa.HasAddress())
			} else {
				assert.Equal(t, netip.MustParseAddr(tt.addr), sa.Addr)
			}
			assert.Equal(t, tt.port, sa.Port)
		})
	}
}

func TestSockAddrMatch(t *testing.T) {
	full := SockAddr{Addr: netip.MustParseAddr("10.0.0.1"), Port: 5004}
	addrOnly := SockAddr{Addr: netip.MustParseAddr("10.0.0.1")}
	portOnly := SockAddr{Port: 5004}
	other := SockAddr{Addr: netip.MustParseAddr("10.0.0.2"), Port: 5004}
	var wildcard SockAddr

	assert.True(t, full.Match(full))
	assert.True(t, full.Match(addrOnly))
	assert.True(t, full.Match(portOnly))
	assert.True(t, full.Match(wildcard))
	assert.True(t, wildcard.Match(full))
	assert.False(t, full.Match(other))
	assert.False(t, full.Match(SockAddr{Addr: full.Addr, Port: 1234}))

	// IPv4-mapped IPv6 compares equal to the plain IPv4 address.
	mapped := SockAddr{Addr: netip.MustParseAddr("::ffff:10.0.0.1"), Port: 5004}
	assert.True(t, full.Match(mapped))
}

func TestSockAddrString(t *testing.T) {
	tests := []struct {
		sa   SockAddr
		want string
	}{
		{SockAddr{}, "*"},
		{SockAddr{Port: 80}, "*:80"},
		{SockAddr{Addr: netip.MustParseAddr("10.0.0.1")}, "10.0.0.1"},
		{SockAddr{Addr: netip.MustParseAddr("10.0.0.1"), Port: 80}, "10.0.0.1:80"},
		{SockAddr{Addr: netip.MustParseAddr("::1"), Port: 80}, "[::1]:80"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sa.String())
	}
}

func TestSockAddrClear(t *testing.T) {
	sa := SockAddr{Addr: netip.MustParseAddr("10.0.0.1"), Port: 80}
	sa.Clear()
	assert.False(t, sa.HasAddress())
	assert.False(t, sa.HasPort())
}
