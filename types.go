package netidentity

import (
	"net/netip"
	"strings"
)

// Sentinel strings used at the serialized boundary in place of absent values.
const (
	UnknownIP       = "Unknown"
	UnknownHost     = "Unknown-Host"
	UnknownUser     = "Unknown-User"
	UnknownAgent    = "Unknown"
	NotDetected     = "Not-Detected"
	NTLMPlaceholder = "NTLM-User"
)

// selfReportSentinels are values a client sends when it could not observe a
// field. They are compared case-insensitively.
var selfReportSentinels = []string{
	UnknownIP,
	UnknownUser,
	UnknownHost,
	NotDetected,
	"WebRTC-Not-Supported",
	"WebRTC-Error",
	"No-Local-IP-Found",
	"Detection-Timeout",
	"null",
}

// Optional represents a value that may be absent.
//
// Use Some(v) to mark a value as present. The zero value is absent.
type Optional[T any] struct {
	v  T
	ok bool
}

// Some returns a present Optional holding value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{v: value, ok: true}
}

// Get returns the stored value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.v, o.ok
}

// Present reports whether a value is stored.
func (o Optional[T]) Present() bool {
	return o.ok
}

// Or returns the stored value, or fallback when absent.
func (o Optional[T]) Or(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.v
}

// AuthMethod classifies which signal source produced a username. It is used
// for audit and debugging only and never affects trust decisions.
type AuthMethod int

const (
	// Start at 1 to avoid zero-value confusion.
	//
	// AuthAnonymous means no authentication signal was present.
	AuthAnonymous AuthMethod = iota + 1
	// AuthProxyForwarded means a fronting proxy asserted the identity.
	AuthProxyForwarded
	// AuthSSLCertificate means a client certificate subject was present.
	AuthSSLCertificate
	// AuthNTLM means an NTLM (or NTLM-over-Negotiate) Authorization header was present.
	AuthNTLM
	// AuthBasic means HTTP Basic credentials were presented.
	AuthBasic
	// AuthOAuth means a bearer token was presented.
	AuthOAuth
	// AuthApplication means the application authenticated the principal itself.
	AuthApplication
)

// String returns the canonical text representation of m.
func (m AuthMethod) String() string {
	switch m {
	case AuthAnonymous:
		return "Anonymous"
	case AuthProxyForwarded:
		return "ProxyForwarded"
	case AuthSSLCertificate:
		return "SslCertificate"
	case AuthNTLM:
		return "Ntlm"
	case AuthBasic:
		return "Basic"
	case AuthOAuth:
		return "OAuth"
	case AuthApplication:
		return "ApplicationAuth"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m AuthMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Identity is the backend-derived identity of one request.
//
// Absent values are represented explicitly; sentinel strings only appear once
// the identity is converted with Record.
type Identity struct {
	IP         Optional[netip.Addr]
	IPSource   string
	Hostname   Optional[string]
	Username   Optional[string]
	UserAgent  Optional[string]
	AuthMethod AuthMethod

	// LookupErr holds the reverse lookup failure, if any. It is never
	// surfaced to callers of Record.
	LookupErr error
}

// ResolvedIdentity is the sentinel-filled form of Identity.
type ResolvedIdentity struct {
	IPAddress  string
	Hostname   string
	Username   string
	UserAgent  string
	AuthMethod AuthMethod
}

// Record converts id to its boundary representation. Every field is either a
// real value or a sentinel.
func (id Identity) Record() ResolvedIdentity {
	return ResolvedIdentity{
		IPAddress:  formatAddr(id.IP),
		Hostname:   id.Hostname.Or(UnknownHost),
		Username:   id.Username.Or(UnknownUser),
		UserAgent:  id.UserAgent.Or(UnknownAgent),
		AuthMethod: authMethodOrAnonymous(id.AuthMethod),
	}
}

// Map exposes the record under the keys the ticket layer consumes.
func (r ResolvedIdentity) Map() map[string]string {
	return map[string]string{
		"clientIpAddress":      r.IPAddress,
		"computerName":         r.Hostname,
		"userName":             r.Username,
		"userAgent":            r.UserAgent,
		"authenticationMethod": r.AuthMethod.String(),
	}
}

// SelfReport is identity data the calling client asserts about itself.
type SelfReport struct {
	PublicIP     Optional[string]
	PrivateIP    Optional[string]
	ComputerName Optional[string]
	Username     Optional[string]
}

// NewSelfReport builds a SelfReport from raw client strings. Empty values and
// "not available" markers such as "Unknown" or "Unknown-User" are treated as
// absent. Values are trimmed and stripped of control characters; the length
// cap is applied when the report is merged.
func NewSelfReport(publicIP, privateIP, computerName, username string) SelfReport {
	return SelfReport{
		PublicIP:     selfReportValue(publicIP),
		PrivateIP:    selfReportValue(privateIP),
		ComputerName: selfReportValue(computerName),
		Username:     selfReportValue(username),
	}
}

func selfReportValue(raw string) Optional[string] {
	v := sanitizeValue(raw, 0)
	if v == "" || isSentinel(v) {
		return Optional[string]{}
	}
	return Some(v)
}

// IsSelfReportSentinel reports whether v is one of the markers clients send
// for a field they could not observe.
func IsSelfReportSentinel(v string) bool {
	return isSentinel(strings.TrimSpace(v))
}

func isSentinel(v string) bool {
	for _, s := range selfReportSentinels {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// MergedIdentity is the reconciliation of backend-derived identity and a
// client self-report.
type MergedIdentity struct {
	PublicIPAddress  string
	PrivateIPAddress string
	ComputerName     string
	Username         string
	UserAgent        string
	AuthMethod       AuthMethod
}

// Map exposes the merged record under the keys the ticket layer consumes.
// clientIpAddress mirrors publicIpAddress.
func (m MergedIdentity) Map() map[string]string {
	return map[string]string{
		"clientIpAddress":      m.PublicIPAddress,
		"publicIpAddress":      m.PublicIPAddress,
		"privateIpAddress":     m.PrivateIPAddress,
		"computerName":         m.ComputerName,
		"userName":             m.Username,
		"userAgent":            m.UserAgent,
		"authenticationMethod": m.AuthMethod.String(),
	}
}

func formatAddr(ip Optional[netip.Addr]) string {
	addr, ok := ip.Get()
	if !ok || !addr.IsValid() {
		return UnknownIP
	}
	return addr.String()
}

func authMethodOrAnonymous(m AuthMethod) AuthMethod {
	if m == 0 {
		return AuthAnonymous
	}
	return m
}
