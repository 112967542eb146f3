package netidentity

// MergeIdentity reconciles backend-derived identity with a client
// self-report. It is a pure function of its arguments.
//
// For the public address, computer name and username, a self-reported value
// wins when the client actually supplied one; otherwise the backend value is
// used. The private address is only observable by the client and defaults to
// NotDetected. The user agent always comes from the request.
//
// Self-reported values are capped at DefaultMaxValueLength runes. Use
// (*Resolver).MergeIdentity to apply the resolver's WithMaxValueLength.
func MergeIdentity(backend Identity, report SelfReport) MergedIdentity {
	return mergeIdentity(backend, report, defaultMaxValueLength)
}

// MergeIdentity is MergeIdentity with self-reported values capped at the
// resolver's configured value length.
func (r *Resolver) MergeIdentity(backend Identity, report SelfReport) MergedIdentity {
	return mergeIdentity(backend, report, r.config.maxValueLength)
}

func mergeIdentity(backend Identity, report SelfReport, maxLen int) MergedIdentity {
	record := backend.Record()

	return MergedIdentity{
		PublicIPAddress:  reported(report.PublicIP, record.IPAddress, maxLen),
		PrivateIPAddress: reported(report.PrivateIP, NotDetected, maxLen),
		ComputerName:     reported(report.ComputerName, record.Hostname, maxLen),
		Username:         reported(report.Username, record.Username, maxLen),
		UserAgent:        record.UserAgent,
		AuthMethod:       record.AuthMethod,
	}
}

// reported returns the self-reported value when it is present and usable.
// SelfReport values built by hand may bypass NewSelfReport, so the sentinel
// check is repeated here.
func reported(value Optional[string], fallback string, maxLen int) string {
	v, ok := value.Get()
	if !ok {
		return fallback
	}

	v = sanitizeValue(v, maxLen)
	if v == "" || isSentinel(v) {
		return fallback
	}
	return v
}
