package netidentity

import (
	"net"
	"net/netip"
	"strings"
)

var ipv4Loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// parseIP is the liberal shape check applied to every candidate token.
// It accepts:
//   - Leading/trailing whitespace: "  192.168.1.1  "
//   - Port suffixes: "192.168.1.1:8080" or "[2001:db8::1]:8080"
//   - Quoted values: "\"192.168.1.1\"" or "'192.168.1.1'"
//   - IPv6 brackets and zones: "[fe80::1%eth0]"
//
// Anything netip.ParseAddr rejects after that cleanup yields an invalid
// netip.Addr.
func parseIP(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	s = trimMatchedChar(s, '"')
	s = trimMatchedChar(s, '\'')
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = trimMatchedPair(s, '[', ']')

	ip, _ := netip.ParseAddr(s)
	return ip
}

// normalizeIP unmaps IPv4-in-IPv6 addresses and folds every IPv6 loopback
// spelling ("::1", "0:0:0:0:0:0:0:1") to 127.0.0.1.
func normalizeIP(ip netip.Addr) netip.Addr {
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	if ip.Is6() && ip.WithZone("") == netip.IPv6Loopback() {
		return ipv4Loopback
	}
	return ip
}

// isUnknownToken reports whether a header token is one of the "unknown"
// markers proxies emit when they cannot see the client.
func isUnknownToken(s string) bool {
	return strings.EqualFold(s, "unknown") || s == "-"
}

// trimMatchedPair removes one leading and trailing delimiter when both match.
func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 {
		return s
	}

	if s[0] != start || s[len(s)-1] != end {
		return s
	}

	return s[1 : len(s)-1]
}

// trimMatchedChar removes one matching leading and trailing character.
func trimMatchedChar(s string, ch byte) string {
	return trimMatchedPair(s, ch, ch)
}
