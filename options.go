package netidentity

import (
	"fmt"
	"net/netip"
	"time"
)

// WithIPHeaders replaces the ordered list of headers consulted for the client
// address. Passing no names makes the resolver use the transport address only.
func WithIPHeaders(names ...string) Option {
	names = cloneStrings(names)

	return func(c *config) error {
		c.ipHeaders = buildIPHeaderSpecs(names)
		return nil
	}
}

// WithIdentityHeaders replaces the ordered list of forwarded identity headers.
func WithIdentityHeaders(names ...string) Option {
	names = cloneStrings(names)

	return func(c *config) error {
		c.identityHeaders = canonicalHeaderNames(names)
		return nil
	}
}

// WithCertSubjectHeaders replaces the headers consulted for a client
// certificate subject forwarded by a TLS-terminating proxy.
func WithCertSubjectHeaders(names ...string) Option {
	names = cloneStrings(names)

	return func(c *config) error {
		c.certSubjectHeaders = canonicalHeaderNames(names)
		return nil
	}
}

// TrustProxyPrefixes restricts header-based address resolution to requests
// whose transport address falls inside one of prefixes.
func TrustProxyPrefixes(prefixes ...netip.Prefix) Option {
	prefixes = clonePrefixes(prefixes)

	return func(c *config) error {
		normalized, err := normalizePrefixes(prefixes)
		if err != nil {
			return err
		}

		appendTrustedProxyCIDRs(c, normalized...)
		return nil
	}
}

// TrustLoopbackProxy adds loopback CIDRs to trusted proxy ranges.
func TrustLoopbackProxy() Option {
	return func(c *config) error {
		appendTrustedProxyCIDRs(c, loopbackProxyCIDRs...)
		return nil
	}
}

// TrustPrivateProxyRanges adds private network CIDRs to trusted proxy ranges.
func TrustPrivateProxyRanges() Option {
	return func(c *config) error {
		appendTrustedProxyCIDRs(c, privateProxyCIDRs...)
		return nil
	}
}

// TrustProxyAddrs adds individual trusted upstream proxy addresses.
func TrustProxyAddrs(addrs ...netip.Addr) Option {
	return func(c *config) error {
		prefixes := make([]netip.Prefix, 0, len(addrs))
		for _, addr := range addrs {
			if !addr.IsValid() {
				return fmt.Errorf("invalid proxy address %q", addr)
			}

			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}

		appendTrustedProxyCIDRs(c, prefixes...)
		return nil
	}
}

// MaxChainLength sets how many tokens per header are examined.
func MaxChainLength(max int) Option {
	return func(c *config) error {
		c.maxChainLength = max
		return nil
	}
}

// WithMaxValueLength caps header-derived strings, in runes.
func WithMaxValueLength(max int) Option {
	return func(c *config) error {
		c.maxValueLength = max
		return nil
	}
}

// WithReverseDNS enables or disables hostname lookups. When disabled the
// hostname is always unresolved.
func WithReverseDNS(enable bool) Option {
	return func(c *config) error {
		c.reverseDNS = enable
		return nil
	}
}

// WithLookupTimeout bounds each reverse DNS lookup.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		c.lookupTimeout = timeout
		return nil
	}
}

// WithHostLookup sets the reverse lookup implementation. *net.Resolver
// satisfies HostLookup.
func WithHostLookup(lookup HostLookup) Option {
	return func(c *config) error {
		c.hostLookup = lookup
		return nil
	}
}

// WithLogger sets the logger implementation used for warning events.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) error {
		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked only for the final winning metrics option after
// option validation succeeds.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
