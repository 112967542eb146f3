package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/schnitzel/netidentity"
)

// PrometheusMetrics is a Prometheus-backed implementation of
// netidentity.Metrics.
type PrometheusMetrics struct {
	ipSources      *prom.CounterVec
	authMethods    *prom.CounterVec
	lookups        *prom.CounterVec
	lookupDuration *prom.HistogramVec
	securityEvents *prom.CounterVec
}

// WithMetrics returns a netidentity option that installs Prometheus-backed
// metrics using prom.DefaultRegisterer.
func WithMetrics() netidentity.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns a netidentity option that installs
// Prometheus-backed metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) netidentity.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

func withMetricsFactory(factory func() (*PrometheusMetrics, error)) netidentity.Option {
	return netidentity.WithMetricsFactory(func() (netidentity.Metrics, error) {
		return factory()
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors on
// the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	ipSources, err := registerCollector(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: "client_identity_ip_source_total",
			Help: "Client address resolutions by winning source (header label, remote_addr or none).",
		},
		[]string{"source"},
	), "client_identity_ip_source_total")
	if err != nil {
		return nil, err
	}

	authMethods, err := registerCollector(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: "client_identity_auth_method_total",
			Help: "Username resolutions by classified authentication method.",
		},
		[]string{"method"},
	), "client_identity_auth_method_total")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCollector(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: "client_identity_reverse_lookup_total",
			Help: "Reverse DNS lookups by result (success, no_hostname, failure, timeout, skipped).",
		},
		[]string{"result"},
	), "client_identity_reverse_lookup_total")
	if err != nil {
		return nil, err
	}

	lookupDuration, err := registerCollector(registerer, prom.NewHistogramVec(
		prom.HistogramOpts{
			Name:    "client_identity_reverse_lookup_duration_seconds",
			Help:    "Reverse DNS lookup latency by result.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"result"},
	), "client_identity_reverse_lookup_duration_seconds")
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCollector(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: "client_identity_security_events_total",
			Help: "Security-related events observed while resolving client identity, labeled by event.",
		},
		[]string{"event"},
	), "client_identity_security_events_total")
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		ipSources:      ipSources,
		authMethods:    authMethods,
		lookups:        lookups,
		lookupDuration: lookupDuration,
		securityEvents: securityEvents,
	}, nil
}

func registerCollector[C prom.Collector](registerer prom.Registerer, collector C, metricName string) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		var zero C
		return zero, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordIPSource increments client_identity_ip_source_total for source.
func (m *PrometheusMetrics) RecordIPSource(source string) {
	m.ipSources.WithLabelValues(source).Inc()
}

// RecordAuthMethod increments client_identity_auth_method_total for method.
func (m *PrometheusMetrics) RecordAuthMethod(method string) {
	m.authMethods.WithLabelValues(method).Inc()
}

// RecordReverseLookup counts the lookup and observes its duration.
func (m *PrometheusMetrics) RecordReverseLookup(result string, duration time.Duration) {
	m.lookups.WithLabelValues(result).Inc()
	m.lookupDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordSecurityEvent increments client_identity_security_events_total for
// the provided event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
