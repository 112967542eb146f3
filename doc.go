// Package netidentity attributes inbound HTTP requests to a best-effort
// network identity (client address, hostname, username, user agent) and
// reconciles that attribution with identity data the client reports about
// itself.
//
// Every input is treated as untrusted and every resolution step is total:
// absent, malformed or sentinel signals fall through to the next source, and
// anything left unresolved is rendered as a sentinel ("Unknown",
// "Unknown-Host", "Unknown-User", "Not-Detected") at the record boundary.
// Nothing here authenticates the caller.
//
// # Basic Usage
//
//	resolver, err := netidentity.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	id := resolver.ResolveRequest(req)
//	fmt.Println(id.Record().Map())
//
// # Address Resolution
//
// Client address headers are consulted in a fixed order (X-Forwarded-For,
// X-Real-IP, Proxy-Client-IP, WL-Proxy-Client-IP, the CGI-style HTTP_*
// variants, Forwarded, CDN headers, True-Client-IP). Within a comma-separated
// chain the leftmost usable token wins. Tokens that are "unknown", do not
// parse as an address, or are loopback are skipped. The transport address is
// the fallback, with IPv6 loopback folded to 127.0.0.1.
//
// Header sources can be restricted to requests arriving from known proxies:
//
//	resolver, _ := netidentity.New(
//	    netidentity.TrustLoopbackProxy(),
//	    netidentity.TrustPrivateProxyRanges(),
//	)
//
// # Merging With a Self-Report
//
//	report := netidentity.NewSelfReport(publicIP, privateIP, computerName, username)
//	merged := resolver.MergeRequest(req, report)
//
// Self-reported values win whenever they are real values; "Unknown" and
// similar markers are ignored in favor of what the server observed.
//
// # Observability
//
// WithLogger accepts any slog-shaped logger (*slog.Logger works directly).
// WithMetrics accepts a Metrics implementation; a Prometheus adapter lives in
// github.com/schnitzel/netidentity/prometheus. DebugReporter writes a full
// dump of the inputs considered for a request without affecting the result.
//
// # Thread Safety
//
// Resolver instances are safe for concurrent use and keep no per-request
// state. They are typically created once at startup.
package netidentity
