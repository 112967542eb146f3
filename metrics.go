package netidentity

import "time"

// Metrics records resolution outcomes and security events emitted by
// Resolver.
//
// Implementations should be safe for concurrent use, as a single Resolver
// instance is typically shared across many goroutines.
type Metrics interface {
	// RecordIPSource is called once per address resolution with the name of
	// the winning source, or SourceNone.
	RecordIPSource(source string)
	// RecordAuthMethod is called once per username resolution with the
	// classified authentication method.
	RecordAuthMethod(method string)
	// RecordReverseLookup is called after each hostname resolution attempt.
	// result is one of the LookupResult* constants.
	RecordReverseLookup(result string, duration time.Duration)
	// RecordSecurityEvent is called when the resolver observes a
	// security-relevant condition.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordIPSource(string) {}

func (noopMetrics) RecordAuthMethod(string) {}

func (noopMetrics) RecordReverseLookup(string, time.Duration) {}

func (noopMetrics) RecordSecurityEvent(string) {}
