// Package httpapi exposes client network identity resolution over HTTP.
package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/schnitzel/netidentity"
)

// PrincipalFunc returns the name of a principal the embedding application
// authenticated for r, or an empty string.
type PrincipalFunc func(r *http.Request) string

// Server routes identity requests to a Resolver.
type Server struct {
	resolver *netidentity.Resolver
	reporter *netidentity.DebugReporter
	logger   zerolog.Logger

	principal      PrincipalFunc
	hostname       func() (string, error)
	now            func() time.Time
	metricsHandler http.Handler
	corsOrigins    []string
	reportAll      bool

	validate *validator.Validate
}

// Option configures a Server.
type Option func(*Server)

// WithPrincipalFunc sets how the authenticated principal is obtained. Without
// it no principal is passed to the resolver.
func WithPrincipalFunc(fn PrincipalFunc) Option {
	return func(s *Server) {
		s.principal = fn
	}
}

// WithDebugReporter sets the reporter used by /api/network/test. When all is
// true every endpoint emits a debug report.
func WithDebugReporter(reporter *netidentity.DebugReporter, all bool) Option {
	return func(s *Server) {
		if reporter != nil {
			s.reporter = reporter
		}
		s.reportAll = all
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithCORSOrigins sets the allowed cross-origin callers. "*" allows any.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// WithLogger sets the access and error logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHostnameFunc overrides how the server's own name is read for
// /api/network/test.
func WithHostnameFunc(fn func() (string, error)) Option {
	return func(s *Server) {
		if fn != nil {
			s.hostname = fn
		}
	}
}

// WithClock overrides the time source used for /userinfo timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Server backed by resolver.
func New(resolver *netidentity.Resolver, opts ...Option) *Server {
	s := &Server{
		resolver:    resolver,
		reporter:    netidentity.NewDebugReporter(nil),
		logger:      zerolog.Nop(),
		hostname:    os.Hostname,
		now:         time.Now,
		corsOrigins: []string{"*"},
		validate:    newValidator(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Handler returns the routed handler with request ID, CORS, recovery and
// access logging applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/network").Subrouter()
	api.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	api.HandleFunc("/whoami", s.handleWhoami).Methods(http.MethodGet)
	api.HandleFunc("/test", s.handleTest).Methods(http.MethodGet)
	api.HandleFunc("/merge", s.handleMerge).Methods(http.MethodPost)

	// Unprefixed routes kept for older front-ends.
	router.HandleFunc("/whoami", s.handleWhoami).Methods(http.MethodGet)
	router.HandleFunc("/userinfo", s.handleUserInfo).Methods(http.MethodGet)
	router.HandleFunc("/network-info", s.handleNetworkInfo).Methods(http.MethodGet)

	if s.metricsHandler != nil {
		router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins(s.corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: s.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
	h = handlers.CustomLoggingHandler(nil, h, s.accessLog)

	return requestIDMiddleware(h)
}
