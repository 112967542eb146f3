package netidentity

import (
	"context"
	"sort"
)

// DebugReport captures every raw input the resolver considered for one
// request, together with its decisions. It exists for operational
// troubleshooting and plays no part in resolution.
type DebugReport struct {
	Path              string
	RemoteAddr        string
	Principal         string
	ClientCertSubject string
	AuthScheme        string
	Headers           map[string][]string

	Identity ResolvedIdentity
	IPSource string
	Lookup   string
	Merged   *MergedIdentity
}

// DebugReport assembles a report for in and the identity resolved from it.
// Authorization credentials are never included, only the scheme.
func (r *Resolver) DebugReport(in RequestInput, id Identity) DebugReport {
	report := DebugReport{
		Path:              in.Path,
		RemoteAddr:        in.RemoteAddr,
		Principal:         in.Principal,
		ClientCertSubject: in.ClientCertSubject,
		AuthScheme:        AuthorizationScheme(in),
		Headers:           make(map[string][]string),
		Identity:          id.Record(),
		IPSource:          id.IPSource,
		Lookup:            lookupOutcome(id),
	}

	names := append(headerSpecNames(r.config.ipHeaders), r.config.identityHeaders...)
	names = append(names, r.config.certSubjectHeaders...)
	names = append(names, "User-Agent")

	for _, name := range names {
		if values := in.values(name); len(values) > 0 {
			report.Headers[name] = cloneStrings(values)
		}
	}

	return report
}

func lookupOutcome(id Identity) string {
	switch {
	case id.Hostname.Present():
		return LookupResultSuccess
	case id.LookupErr != nil:
		return lookupResult(id.LookupErr)
	default:
		return LookupResultSkipped
	}
}

// WithMerged attaches the merge outcome to the report.
func (d DebugReport) WithMerged(m MergedIdentity) DebugReport {
	d.Merged = &m
	return d
}

// DebugReporter writes DebugReports to an operational log. It only observes:
// it has no return value and cannot change any resolution outcome.
type DebugReporter struct {
	logger DebugLogger
}

// NewDebugReporter returns a reporter writing to logger. A nil logger
// discards reports.
func NewDebugReporter(logger DebugLogger) *DebugReporter {
	if isNilInterface(logger) {
		logger = noopLogger{}
	}
	return &DebugReporter{logger: logger}
}

// Report writes one structured entry for d.
func (dr *DebugReporter) Report(ctx context.Context, d DebugReport) {
	if ctx == nil {
		ctx = context.Background()
	}

	args := []any{
		"path", d.Path,
		"remote_addr", d.RemoteAddr,
		"principal", d.Principal,
		"client_cert_subject", d.ClientCertSubject,
		"auth_scheme", d.AuthScheme,
		"ip_source", d.IPSource,
		"reverse_lookup", d.Lookup,
		"client_ip", d.Identity.IPAddress,
		"hostname", d.Identity.Hostname,
		"username", d.Identity.Username,
		"user_agent", d.Identity.UserAgent,
		"auth_method", d.Identity.AuthMethod.String(),
	}

	names := make([]string, 0, len(d.Headers))
	for name := range d.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "header."+name, d.Headers[name])
	}

	if d.Merged != nil {
		args = append(args,
			"merged.public_ip", d.Merged.PublicIPAddress,
			"merged.private_ip", d.Merged.PrivateIPAddress,
			"merged.computer_name", d.Merged.ComputerName,
			"merged.username", d.Merged.Username,
		)
	}

	dr.logger.InfoContext(ctx, "client network identity debug report", args...)
}
