// Package ip holds the IP datagram representation and address matching
// used by the capture reader and the session filter.
package ip

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// SockAddr is an IP address and port pair where either component may be
// left unset. An unset component acts as a wildcard in Match.
type SockAddr struct {
	Addr netip.Addr
	Port uint16
}

// HasAddress reports whether the address component is set.
func (a SockAddr) HasAddress() bool {
	return a.Addr.IsValid() && !a.Addr.IsUnspecified()
}

// HasPort reports whether the port component is set.
func (a SockAddr) HasPort() bool {
	return a.Port != 0
}

// Clear resets both components to wildcards.
func (a *SockAddr) Clear() {
	a.Addr = netip.Addr{}
	a.Port = 0
}

// Match checks whether two socket addresses designate the same endpoint.
// A component which is unset on either side matches anything.
func (a SockAddr) Match(b SockAddr) bool {
	if a.HasAddress() && b.HasAddress() && a.Addr.Unmap() != b.Addr.Unmap() {
		return false
	}
	return a.Port == 0 || b.Port == 0 || a.Port == b.Port
}

func (a SockAddr) String() string {
	addr := "*"
	if a.HasAddress() {
		addr = a.Addr.Unmap().String()
		if a.Addr.Unmap().Is6() {
			addr = "[" + addr + "]"
		}
	}
	if a.Port == 0 {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, a.Port)
}

// ParseSockAddr parses "addr", "addr:port", "[v6addr]:port" or ":port".
// Empty components are left unset.
func ParseSockAddr(s string) (SockAddr, error) {
	var sa SockAddr
	if s == "" {
		return sa, nil
	}

	host, port := s, ""
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return sa, fmt.Errorf("invalid socket address %q", s)
		}
		host = s[1:end]
		rest := s[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return sa, fmt.Errorf("invalid socket address %q", s)
			}
			port = rest[1:]
		}
	} else if i := strings.LastIndex(s, ":"); i >= 0 && strings.Count(s, ":") == 1 {
		host, port = s[:i], s[i+1:]
	}

	if host != "" {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return sa, fmt.Errorf("invalid address in %q: %w", s, err)
		}
		sa.Addr = addr.Unmap()
	}
	if port != "" {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return sa, fmt.Errorf("invalid port in %q: %w", s, err)
		}
		sa.Port = uint16(p)
	}
	return sa, nil
}
