package netidentity

import (
	"fmt"
	"net"
	"net/netip"
	"net/textproto"
	"time"
)

const (
	// DefaultMaxChainLength is the maximum number of tokens examined per
	// proxy header. Tokens past the limit are ignored. Real proxy chains
	// rarely exceed 5-10 entries; the bound keeps a hostile header from
	// costing more than a constant amount of parsing.
	DefaultMaxChainLength = 100

	// DefaultMaxValueLength caps, in runes, every header-derived string kept
	// in an identity record.
	DefaultMaxValueLength = defaultMaxValueLength

	// DefaultLookupTimeout bounds a single reverse DNS lookup.
	DefaultLookupTimeout = time.Second
)

// defaultIPHeaders lists client address headers in decreasing order of
// specificity. The underscore spellings are what CGI-style gateways forward.
var defaultIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_X_FORWARDED_FOR",
	"HTTP_X_FORWARDED",
	"HTTP_X_CLUSTER_CLIENT_IP",
	"X-Cluster-Client-IP",
	"HTTP_CLIENT_IP",
	"HTTP_FORWARDED_FOR",
	"HTTP_FORWARDED",
	"Forwarded",
	"HTTP_VIA",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
	"True-Client-IP",
}

// defaultIdentityHeaders are the names corporate proxies and SSO gateways
// use to pass on an identity they already authenticated.
var defaultIdentityHeaders = []string{
	"X-Forwarded-User",
	"X-Remote-User",
	"Remote-User",
	"X-Authenticated-User",
	"X-Auth-Request-User",
	"X-User",
	"Proxy-Remote-User",
}

// defaultCertSubjectHeaders carry the client certificate subject when TLS is
// terminated in front of the application.
var defaultCertSubjectHeaders = []string{
	"X-SSL-Client-S-DN",
	"X-Client-Cert-Subject",
	"SSL_CLIENT_S_DN",
}

// DefaultIPHeaders returns a copy of the built-in client address header list.
func DefaultIPHeaders() []string {
	return cloneStrings(defaultIPHeaders)
}

// DefaultIdentityHeaders returns a copy of the built-in forwarded identity
// header list.
func DefaultIdentityHeaders() []string {
	return cloneStrings(defaultIdentityHeaders)
}

// Option configures a Resolver.
//
// Construct options using package-provided option builder functions.
type Option func(*config) error

// config holds resolver configuration state.
//
// It is mutated by Option functions during construction only; a built
// Resolver never changes it.
type config struct {
	ipHeaders          []ipHeaderSpec
	identityHeaders    []string
	certSubjectHeaders []string

	trustedProxyCIDRs []netip.Prefix
	trustedProxyMatch proxyMatcher

	maxChainLength int
	maxValueLength int

	reverseDNS    bool
	lookupTimeout time.Duration
	hostLookup    HostLookup

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

var (
	// loopbackProxyCIDRs contains loopback networks used when the app sits
	// behind a reverse proxy running on the same host.
	loopbackProxyCIDRs = []netip.Prefix{
		mustParsePrefix("127.0.0.0/8"),
		mustParsePrefix("::1/128"),
	}

	// privateProxyCIDRs contains private-network ranges commonly used for
	// upstream proxies in VM and internal network deployments.
	privateProxyCIDRs = []netip.Prefix{
		mustParsePrefix("10.0.0.0/8"),
		mustParsePrefix("172.16.0.0/12"),
		mustParsePrefix("192.168.0.0/16"),
		mustParsePrefix("fc00::/7"),
	}
)

func mustParsePrefix(cidr string) netip.Prefix {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in CIDR %q: %v", cidr, err))
	}
	return prefix
}

// ParseCIDRs parses textual CIDR ranges, for use with TrustProxyPrefixes.
func ParseCIDRs(cidrs ...string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

func buildIPHeaderSpecs(names []string) []ipHeaderSpec {
	specs := make([]ipHeaderSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, newIPHeaderSpec(name))
	}
	return specs
}

func canonicalHeaderNames(names []string) []string {
	canonical := make([]string, len(names))
	for i, name := range names {
		canonical[i] = textproto.CanonicalMIMEHeaderKey(name)
	}
	return canonical
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}

func clonePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	if prefixes == nil {
		return nil
	}
	cloned := make([]netip.Prefix, len(prefixes))
	copy(cloned, prefixes)
	return cloned
}

func normalizePrefixes(prefixes []netip.Prefix) ([]netip.Prefix, error) {
	normalized := make([]netip.Prefix, 0, len(prefixes))
	for _, prefix := range prefixes {
		if !prefix.IsValid() {
			return nil, fmt.Errorf("invalid trusted proxy prefix %q", prefix)
		}
		normalized = append(normalized, prefix.Masked())
	}

	return normalized, nil
}

func mergeUniquePrefixes(existing []netip.Prefix, additions ...netip.Prefix) []netip.Prefix {
	if len(existing) == 0 && len(additions) == 0 {
		return nil
	}

	merged := make([]netip.Prefix, 0, len(existing)+len(additions))
	seen := make(map[netip.Prefix]struct{}, len(existing)+len(additions))

	for _, prefix := range append(clonePrefixes(existing), additions...) {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	return merged
}

func appendTrustedProxyCIDRs(c *config, prefixes ...netip.Prefix) {
	if len(prefixes) == 0 {
		return
	}

	c.trustedProxyCIDRs = mergeUniquePrefixes(c.trustedProxyCIDRs, prefixes...)
}

func defaultConfig() *config {
	return &config{
		ipHeaders:          buildIPHeaderSpecs(defaultIPHeaders),
		identityHeaders:    canonicalHeaderNames(defaultIdentityHeaders),
		certSubjectHeaders: canonicalHeaderNames(defaultCertSubjectHeaders),
		maxChainLength:     DefaultMaxChainLength,
		maxValueLength:     DefaultMaxValueLength,
		reverseDNS:         true,
		lookupTimeout:      DefaultLookupTimeout,
		hostLookup:         net.DefaultResolver,
		logger:             noopLogger{},
		metrics:            noopMetrics{},
	}
}

func applyOptions(c *config, opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func configFromOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	cfg.trustedProxyMatch = buildProxyMatcher(cfg.trustedProxyCIDRs)

	if cfg.useMetricsFactory {
		if cfg.metricsFactory == nil {
			return nil, fmt.Errorf("metrics factory cannot be nil")
		}

		// Validate before the factory runs so a bad config does not
		// register collectors.
		validationConfig := *cfg
		validationConfig.metrics = noopMetrics{}
		if err := validationConfig.validate(); err != nil {
			return nil, err
		}

		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		cfg.metrics = metrics
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
