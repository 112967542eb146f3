package netidentity

import (
	"net/netip"
	"net/textproto"
	"strings"
)

const (
	// SourceRemoteAddr names the transport-level peer address source.
	SourceRemoteAddr = "remote_addr"
	// SourceNone is reported when no source produced an address.
	SourceNone = "none"
)

// typicalChainCapacity is the initial capacity used when collecting tokens.
const typicalChainCapacity = 8

// ipHeaderSpec is one row of the address header table: the header to read
// and how to split a header line into candidate tokens.
type ipHeaderSpec struct {
	name   string
	source string
	tokens func(value string) ([]string, error)
}

func newIPHeaderSpec(name string) ipHeaderSpec {
	canonical := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
	spec := ipHeaderSpec{
		name:   canonical,
		source: NormalizeSourceName(canonical),
		tokens: commaTokens,
	}
	if canonical == "Forwarded" {
		spec.tokens = forwardedTokens
	}
	return spec
}

func headerSpecNames(specs []ipHeaderSpec) []string {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.name
	}
	return names
}

// NormalizeSourceName converts a header name to the source label used in
// identity records and metrics, for example "X-Forwarded-For" becomes
// "x_forwarded_for".
func NormalizeSourceName(headerName string) string {
	return strings.ToLower(strings.ReplaceAll(headerName, "-", "_"))
}

// commaTokens splits a forwarded-for style chain. The chain lists the client
// first, then each traversed proxy.
func commaTokens(value string) ([]string, error) {
	return strings.Split(value, ","), nil
}

// ipDecision is the outcome of address resolution together with the security
// events observed along the way. Recording the events is left to the caller.
type ipDecision struct {
	addr   netip.Addr
	source string
	events []string
}

func (d *ipDecision) note(event string) {
	for _, e := range d.events {
		if e == event {
			return
		}
	}
	d.events = append(d.events, event)
}

// extractIP walks the header table in order and returns the first candidate
// token that is a well-formed, non-loopback address. Within a header, tokens
// are taken left to right. When no header yields a candidate the transport
// address is used.
func extractIP(in RequestInput, cfg *config) ipDecision {
	var d ipDecision

	remote := parseIP(in.RemoteAddr)

	headersAllowed := true
	if cfg.trustedProxyMatch.enabled() && !cfg.trustedProxyMatch.contains(remote) {
		headersAllowed = false
	}

	for _, spec := range cfg.ipHeaders {
		values := in.values(spec.name)
		if len(values) == 0 {
			continue
		}
		if !headersAllowed {
			d.note(securityEventUntrustedProxy)
			break
		}
		if len(values) > 1 {
			d.note(securityEventMultipleHeaders)
		}

		if addr, ok := firstHeaderCandidate(values, spec, cfg.maxChainLength, &d); ok {
			d.addr = addr
			d.source = spec.source
			return d
		}
	}

	if remote.IsValid() {
		d.addr = normalizeIP(remote)
		d.source = SourceRemoteAddr
		return d
	}

	d.source = SourceNone
	return d
}

func firstHeaderCandidate(values []string, spec ipHeaderSpec, limit int, d *ipDecision) (netip.Addr, bool) {
	examined := 0

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || isUnknownToken(value) {
			continue
		}

		tokens, err := spec.tokens(value)
		if err != nil {
			d.note(securityEventMalformedForwarded)
			continue
		}

		for _, token := range tokens {
			if examined >= limit {
				d.note(securityEventChainTooLong)
				return netip.Addr{}, false
			}
			examined++

			token = strings.TrimSpace(token)
			if token == "" || isUnknownToken(token) {
				continue
			}

			ip := parseIP(token)
			if !ip.IsValid() {
				d.note(securityEventInvalidIP)
				continue
			}

			ip = ip.Unmap()
			if ip.IsLoopback() {
				d.note(securityEventLoopbackIP)
				continue
			}

			return normalizeIP(ip), true
		}
	}

	return netip.Addr{}, false
}
