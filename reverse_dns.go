package netidentity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

var (
	// ErrLookupFailed is returned when the resolver reports an error.
	ErrLookupFailed = errors.New("reverse lookup failed")
	// ErrLookupTimeout is returned when the lookup exceeds its timeout.
	ErrLookupTimeout = errors.New("reverse lookup timed out")
	// ErrNoHostname is returned when no answer names the host.
	ErrNoHostname = errors.New("reverse lookup returned no hostname")
	// ErrLookupSkipped is returned when reverse DNS is disabled or there is
	// no address to look up.
	ErrLookupSkipped = errors.New("reverse lookup skipped")
)

// HostLookup performs reverse name resolution. Implementations must honor
// ctx cancellation; the resolver relies on it to bound lookup time.
//
// *net.Resolver satisfies HostLookup.
type HostLookup interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// LookupError describes a failed hostname resolution.
type LookupError struct {
	Err   error
	Addr  string
	Cause error
}

func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (%v)", e.Addr, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Addr, e.Err)
}

func (e *LookupError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return LookupResultSuccess
	case errors.Is(err, ErrLookupSkipped):
		return LookupResultSkipped
	case errors.Is(err, ErrLookupTimeout):
		return LookupResultTimeout
	case errors.Is(err, ErrNoHostname):
		return LookupResultNoHostname
	default:
		return LookupResultFailure
	}
}

// lookupHostname resolves addr to a name. A result that merely echoes the
// address back counts as no hostname.
func lookupHostname(ctx context.Context, addr netip.Addr, cfg *config) (hostname string, err error) {
	if !addr.IsValid() {
		return "", &LookupError{Err: ErrLookupSkipped, Addr: UnknownIP}
	}

	text := addr.String()
	if !cfg.reverseDNS {
		return "", &LookupError{Err: ErrLookupSkipped, Addr: text}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.lookupTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			hostname = ""
			err = &LookupError{Err: ErrLookupFailed, Addr: text, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	names, lookupErr := cfg.hostLookup.LookupAddr(ctx, text)
	if lookupErr != nil {
		kind := ErrLookupFailed
		if isTimeout(ctx, lookupErr) {
			kind = ErrLookupTimeout
		}
		return "", &LookupError{Err: kind, Addr: text, Cause: lookupErr}
	}

	for _, name := range names {
		name = strings.TrimSuffix(sanitizeValue(name, cfg.maxValueLength), ".")
		if name == "" || name == text {
			continue
		}
		if echoed := parseIP(name); echoed.IsValid() && normalizeIP(echoed.Unmap()) == addr {
			continue
		}
		return name, nil
	}

	return "", &LookupError{Err: ErrNoHostname, Addr: text}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsTimeout
}

// Clock seams for tests.
var (
	timeNow = time.Now
	since   = time.Since
)
