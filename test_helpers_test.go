package netidentity

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

type capturedLogEntry struct {
	ctx   context.Context
	level string
	msg   string
	attrs map[string]any
}

type capturedLogger struct {
	mu      sync.Mutex
	entries []capturedLogEntry
}

func (l *capturedLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "warn", msg, args)
}

func (l *capturedLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "info", msg, args)
}

func (l *capturedLogger) record(ctx context.Context, level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, capturedLogEntry{
		ctx:   ctx,
		level: level,
		msg:   msg,
		attrs: attrsToMap(args),
	})
}

func (l *capturedLogger) snapshot() []capturedLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]capturedLogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func attrsToMap(args []any) map[string]any {
	attrs := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs[key] = args[i+1]
	}
	return attrs
}

func assertAttr(t *testing.T, attrs map[string]any, key string, want any) {
	t.Helper()

	got, ok := attrs[key]
	if !ok {
		t.Fatalf("missing %q attr", key)
	}

	if got != want {
		t.Fatalf("%s attr = %v, want %v", key, got, want)
	}
}

type mockMetrics struct {
	mu             sync.Mutex
	ipSources      map[string]int
	authMethods    map[string]int
	lookups        map[string]int
	securityEvents map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		ipSources:      make(map[string]int),
		authMethods:    make(map[string]int),
		lookups:        make(map[string]int),
		securityEvents: make(map[string]int),
	}
}

func (m *mockMetrics) RecordIPSource(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipSources[source]++
}

func (m *mockMetrics) RecordAuthMethod(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authMethods[method]++
}

func (m *mockMetrics) RecordReverseLookup(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[result]++
}

func (m *mockMetrics) RecordSecurityEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securityEvents[event]++
}

func (m *mockMetrics) count(table map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return table[key]
}

// lookupFunc adapts a function to HostLookup.
type lookupFunc func(ctx context.Context, addr string) ([]string, error)

func (f lookupFunc) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	return f(ctx, addr)
}

// staticLookup answers from a fixed table and counts calls.
type staticLookup struct {
	mu    sync.Mutex
	names map[string][]string
	calls int
}

func (s *staticLookup) LookupAddr(_ context.Context, addr string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if names, ok := s.names[addr]; ok {
		return names, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
}

func (s *staticLookup) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// input builds a RequestInput from alternating header name/value pairs.
func input(remoteAddr string, headerPairs ...string) RequestInput {
	h := make(http.Header)
	for i := 0; i+1 < len(headerPairs); i += 2 {
		h.Add(headerPairs[i], headerPairs[i+1])
	}

	return RequestInput{
		Context:    context.Background(),
		RemoteAddr: remoteAddr,
		Path:       "/tickets",
		Headers:    h,
	}
}

func mustNew(t testing.TB, opts ...Option) *Resolver {
	t.Helper()

	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}
