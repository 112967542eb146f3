package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schnitzel/netidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	mu    sync.Mutex
	names map[string][]string
	calls []string
}

func (f *fakeLookup) LookupAddr(_ context.Context, addr string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, addr)
	if names, ok := f.names[addr]; ok {
		return names, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type captureLogger struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (c *captureLogger) InfoContext(_ context.Context, msg string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := map[string]any{"msg": msg}
	for i := 0; i+1 < len(args); i += 2 {
		entry[args[i].(string)] = args[i+1]
	}
	c.entries = append(c.entries, entry)
}

func (c *captureLogger) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newTestServer(t *testing.T, lookup *fakeLookup, opts ...Option) http.Handler {
	t.Helper()

	resolver, err := netidentity.New(netidentity.WithHostLookup(lookup))
	require.NoError(t, err)

	return New(resolver, opts...).Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleInfo(t *testing.T) {
	lookup := &fakeLookup{names: map[string][]string{"203.0.113.5": {"ws-42.corp.example."}}}
	h := newTestServer(t, lookup)

	req := httptest.NewRequest(http.MethodGet, "/api/network/info", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	req.Header.Set("X-Forwarded-User", `CORP\jdoe`)
	req.Header.Set("User-Agent", "Mozilla/5.0")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{
		"clientIpAddress":      "203.0.113.5",
		"computerName":         "ws-42.corp.example",
		"userName":             "jdoe",
		"userAgent":            "Mozilla/5.0",
		"authenticationMethod": "ProxyForwarded",
	}, decodeBody(t, rec))
}

func TestHandleInfo_NothingResolvable(t *testing.T) {
	h := newTestServer(t, &fakeLookup{})

	req := httptest.NewRequest(http.MethodGet, "/api/network/info", nil)
	req.RemoteAddr = "not-an-address"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"clientIpAddress":      netidentity.UnknownIP,
		"computerName":         netidentity.UnknownHost,
		"userName":             netidentity.UnknownUser,
		"userAgent":            netidentity.UnknownAgent,
		"authenticationMethod": "Anonymous",
	}, decodeBody(t, rec))
}

func TestHandleWhoami_WithPrincipal(t *testing.T) {
	lookup := &fakeLookup{}
	h := newTestServer(t, lookup, WithPrincipalFunc(func(*http.Request) string {
		return "alice@corp.example.com"
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil)
	req.RemoteAddr = "[::1]:8080"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"ip":                   "127.0.0.1",
		"ipAddress":            "127.0.0.1",
		"username":             "alice",
		"authenticationMethod": "ApplicationAuth",
	}, decodeBody(t, rec))
	assert.Zero(t, lookup.callCount(), "whoami must not perform a reverse lookup")
}

func TestHandleTest_EmitsDebugReport(t *testing.T) {
	capture := &captureLogger{}
	h := newTestServer(t, &fakeLookup{},
		WithDebugReporter(netidentity.NewDebugReporter(capture), false),
		WithHostnameFunc(func() (string, error) { return "srv-01", nil }),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/network/test", nil)
	req.RemoteAddr = "198.51.100.20:443"
	req.Header.Set("Authorization", "Bearer secret-token")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "srv-01", body["serverInfo"])
	assert.Equal(t, "198.51.100.20", body["clientIpAddress"])
	assert.Equal(t, "OAuth", body["authenticationMethod"])

	require.Equal(t, 1, capture.len())
	entry := capture.entries[0]
	assert.Equal(t, "Bearer", entry["auth_scheme"])
	for key, value := range entry {
		assert.NotContains(t, key, "Authorization")
		if s, ok := value.(string); ok {
			assert.NotContains(t, s, "secret-token")
		}
	}
}

func TestHandleTest_HostnameFailure(t *testing.T) {
	h := newTestServer(t, &fakeLookup{},
		WithHostnameFunc(func() (string, error) { return "", errors.New("boom") }),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/network/test", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, netidentity.UnknownHost, decodeBody(t, rec)["serverInfo"])
}

func TestHandleMerge(t *testing.T) {
	lookup := &fakeLookup{names: map[string][]string{"203.0.113.9": {"backend-name"}}}
	h := newTestServer(t, lookup)

	body := `{"publicIpAddress":"Unknown","privateIpAddress":"192.168.1.20","computerName":"LAPTOP-7","username":"Unknown-User"}`
	req := httptest.NewRequest(http.MethodPost, "/api/network/merge", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:40000"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TicketClient/2.1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"clientIpAddress":      "203.0.113.9",
		"publicIpAddress":      "203.0.113.9",
		"privateIpAddress":     "192.168.1.20",
		"computerName":         "LAPTOP-7",
		"userName":             netidentity.UnknownUser,
		"userAgent":            "TicketClient/2.1",
		"authenticationMethod": "Anonymous",
	}, decodeBody(t, rec))
	assert.Zero(t, lookup.callCount(), "reported computer name must skip the reverse lookup")
}

func TestHandleMerge_ReportAll(t *testing.T) {
	capture := &captureLogger{}
	lookup := &fakeLookup{names: map[string][]string{"203.0.113.9": {"backend-name"}}}
	h := newTestServer(t, lookup, WithDebugReporter(netidentity.NewDebugReporter(capture), true))

	req := httptest.NewRequest(http.MethodPost, "/api/network/merge", strings.NewReader(`{"privateIpAddress":"WebRTC-Not-Supported"}`))
	req.RemoteAddr = "203.0.113.9:40000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "backend-name", body["computerName"])
	assert.Equal(t, netidentity.NotDetected, body["privateIpAddress"])

	require.Equal(t, 1, capture.len())
	assert.Equal(t, "backend-name", capture.entries[0]["merged.computer_name"])
}

func TestHandleMerge_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "malformed json",
			body:    `{"publicIpAddress":`,
			wantErr: "malformed JSON body",
		},
		{
			name:    "empty body",
			body:    ``,
			wantErr: "request body is empty",
		},
		{
			name:    "public address not an ip",
			body:    `{"publicIpAddress":"my-router"}`,
			wantErr: "publicIpAddress must be an IP address",
		},
		{
			name:    "computer name too long",
			body:    `{"computerName":"` + strings.Repeat("x", 300) + `"}`,
			wantErr: "computerName must be at most 255 characters",
		},
	}

	h := newTestServer(t, &fakeLookup{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/network/merge", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decodeBody(t, rec)["error"])
		})
	}
}

func TestHandleMerge_SentinelAddressesAccepted(t *testing.T) {
	h := newTestServer(t, &fakeLookup{})

	body := `{"publicIpAddress":"unknown","privateIpAddress":"Not-Detected"}`
	req := httptest.NewRequest(http.MethodPost, "/api/network/merge", strings.NewReader(body))
	req.RemoteAddr = "198.51.100.1:1000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "198.51.100.1", got["publicIpAddress"])
	assert.Equal(t, netidentity.NotDetected, got["privateIpAddress"])
}

func TestHandleMerge_ClientDetectionMarkers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no local ip", body: `{"privateIpAddress":"No-Local-IP-Found","username":"null"}`},
		{name: "webrtc error", body: `{"privateIpAddress":"WebRTC-Error"}`},
		{name: "detection timeout", body: `{"privateIpAddress":"Detection-Timeout","publicIpAddress":"Unknown"}`},
		{name: "blank public address", body: `{"publicIpAddress":"   ","privateIpAddress":" "}`},
	}

	h := newTestServer(t, &fakeLookup{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/network/merge", strings.NewReader(tt.body))
			req.RemoteAddr = "198.51.100.1:1000"

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			got := decodeBody(t, rec)
			assert.Equal(t, "198.51.100.1", got["publicIpAddress"])
			assert.Equal(t, netidentity.NotDetected, got["privateIpAddress"])
			assert.Equal(t, netidentity.UnknownUser, got["userName"])
		})
	}
}

func TestLegacyRoutes(t *testing.T) {
	lookup := &fakeLookup{names: map[string][]string{"203.0.113.5": {"ws-42.corp.example."}}}
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))
	h := newTestServer(t, lookup,
		WithHostnameFunc(func() (string, error) { return "srv-01", nil }),
		WithClock(func() time.Time { return fixed }),
	)

	newRequest := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", "203.0.113.5")
		req.Header.Set("X-Forwarded-User", `CORP\jdoe`)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		return req
	}

	t.Run("whoami", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest("/whoami"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]string{
			"ip":                   "203.0.113.5",
			"ipAddress":            "203.0.113.5",
			"username":             "jdoe",
			"authenticationMethod": "ProxyForwarded",
		}, decodeBody(t, rec))
	})

	t.Run("userinfo", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest("/userinfo"))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			User      map[string]string `json:"user"`
			Timestamp string            `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "jdoe", body.User["username"])
		assert.Equal(t, "203.0.113.5", body.User["ipAddress"])
		assert.Equal(t, "2026-03-14T08:26:53Z", body.Timestamp)
	})

	t.Run("network-info", func(t *testing.T) {
		before := lookup.callCount()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest("/network-info"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]string{
			"clientIp":       "203.0.113.5",
			"clientHostname": "ws-42.corp.example",
			"clientUsername": "jdoe",
			"serverInfo":     "srv-01",
			"userAgent":      "Mozilla/5.0",
		}, decodeBody(t, rec))
		assert.Equal(t, before+1, lookup.callCount())
	})

	t.Run("post rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/network-info", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMergeRejectsGet(t *testing.T) {
	h := newTestServer(t, &fakeLookup{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/network/merge", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, &fakeLookup{})

	t.Run("uuid kept", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil)
		req.Header.Set(requestIDHeader, id)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, id, rec.Header().Get(requestIDHeader))
	})

	t.Run("non uuid replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil)
		req.Header.Set(requestIDHeader, "<script>")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		assert.NotEqual(t, "<script>", got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err)
	})

	t.Run("generated when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil))

		_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
		assert.NoError(t, err)
	})
}

func TestMetricsRoute(t *testing.T) {
	without := newTestServer(t, &fakeLookup{})
	rec := httptest.NewRecorder()
	without.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	with := newTestServer(t, &fakeLookup{}, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})))
	rec = httptest.NewRecorder()
	with.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeLookup{})

	req := httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil)
	req.Header.Set("Origin", "https://helpdesk.example.com")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryHandler(t *testing.T) {
	resolver, err := netidentity.New(netidentity.WithReverseDNS(false))
	require.NoError(t, err)

	h := New(resolver, WithPrincipalFunc(func(*http.Request) string {
		panic("session store unavailable")
	})).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/network/whoami", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
