package netidentity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
)

// Resolver attributes inbound requests to a network identity and reconciles
// that attribution with client self-reports.
//
// A Resolver holds only immutable configuration and is safe for concurrent
// reuse. Nothing is cached between calls.
type Resolver struct {
	config *config
}

// New creates a Resolver from one or more Option builders.
func New(opts ...Option) (*Resolver, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Resolver{config: cfg}, nil
}

// ExtractIP resolves the best-guess client address and the name of the
// source it came from. An invalid address means no source produced one.
func (r *Resolver) ExtractIP(in RequestInput) (netip.Addr, string) {
	d := extractIP(in, r.config)

	for _, event := range d.events {
		r.config.metrics.RecordSecurityEvent(event)
		if event == securityEventUntrustedProxy || event == securityEventChainTooLong || event == securityEventMalformedForwarded {
			r.logSecurityWarning(in, d.source, event)
		}
	}
	r.config.metrics.RecordIPSource(d.source)

	return d.addr, d.source
}

// LookupHostname resolves addr to a hostname within the configured timeout.
// It returns a *LookupError when no real name is found; it never panics.
func (r *Resolver) LookupHostname(ctx context.Context, addr netip.Addr) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := timeNow()
	hostname, err := lookupHostname(ctx, addr, r.config)
	r.config.metrics.RecordReverseLookup(lookupResult(err), since(start))

	return hostname, err
}

// ExtractUsername resolves the asserted username and classifies the
// authentication signal that was present. An empty name means none was found.
func (r *Resolver) ExtractUsername(in RequestInput) (string, AuthMethod) {
	name, _ := extractUsername(in, r.config)
	method := classifyAuthentication(in, r.config)
	r.config.metrics.RecordAuthMethod(method.String())

	return name, method
}

// Resolve runs address, hostname and username resolution for one request.
func (r *Resolver) Resolve(in RequestInput) Identity {
	id := r.resolveBase(in)
	r.resolveHostname(in, &id)
	return id
}

// ResolveRequest is Resolve for net/http requests.
func (r *Resolver) ResolveRequest(req *http.Request, opts ...InputOption) Identity {
	return r.Resolve(InputFromRequest(req, opts...))
}

// Merge resolves the request and reconciles it with report. The reverse
// lookup is skipped when the client supplied its own computer name.
func (r *Resolver) Merge(in RequestInput, report SelfReport) MergedIdentity {
	id := r.resolveBase(in)
	if reported(report.ComputerName, "", r.config.maxValueLength) == "" {
		r.resolveHostname(in, &id)
	}

	return r.MergeIdentity(id, report)
}

// MergeRequest is Merge for net/http requests.
func (r *Resolver) MergeRequest(req *http.Request, report SelfReport, opts ...InputOption) MergedIdentity {
	return r.Merge(InputFromRequest(req, opts...), report)
}

func (r *Resolver) resolveBase(in RequestInput) Identity {
	var id Identity

	addr, source := r.ExtractIP(in)
	if addr.IsValid() {
		id.IP = Some(addr)
	}
	id.IPSource = source

	name, method := r.ExtractUsername(in)
	if name != "" {
		id.Username = Some(name)
	}
	id.AuthMethod = method

	if agent := sanitizeValue(in.first("User-Agent"), r.config.maxValueLength); agent != "" {
		id.UserAgent = Some(agent)
	}

	return id
}

func (r *Resolver) resolveHostname(in RequestInput, id *Identity) {
	addr, _ := id.IP.Get()

	hostname, err := r.LookupHostname(in.context(), addr)
	if err != nil {
		id.LookupErr = err
		if errors.Is(err, ErrLookupFailed) || errors.Is(err, ErrLookupTimeout) {
			r.config.logger.WarnContext(in.context(), "reverse lookup failed",
				"event", "reverse_lookup_failed",
				"ip", addr.String(),
				"path", in.Path,
				"error", err.Error(),
			)
		}
		return
	}

	id.Hostname = Some(hostname)
}

func (r *Resolver) logSecurityWarning(in RequestInput, source, event string) {
	r.config.logger.WarnContext(in.context(), "suspicious client address headers",
		"event", event,
		"source", source,
		"path", in.Path,
		"remote_addr", in.RemoteAddr,
	)
}
