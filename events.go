package netidentity

const (
	securityEventMultipleHeaders    = "multiple_headers"
	securityEventChainTooLong       = "chain_too_long"
	securityEventUntrustedProxy     = "untrusted_proxy"
	securityEventInvalidIP          = "invalid_ip"
	securityEventLoopbackIP         = "loopback_ip"
	securityEventMalformedForwarded = "malformed_forwarded"
)

// Reverse lookup outcomes reported through Metrics.RecordReverseLookup.
const (
	LookupResultSuccess    = "success"
	LookupResultNoHostname = "no_hostname"
	LookupResultFailure    = "failure"
	LookupResultTimeout    = "timeout"
	LookupResultSkipped    = "skipped"
)
