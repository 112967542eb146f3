package netidentity

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAuthMethodString(t *testing.T) {
	tests := []struct {
		method AuthMethod
		want   string
	}{
		{AuthAnonymous, "Anonymous"},
		{AuthProxyForwarded, "ProxyForwarded"},
		{AuthSSLCertificate, "SslCertificate"},
		{AuthNTLM, "Ntlm"},
		{AuthBasic, "Basic"},
		{AuthOAuth, "OAuth"},
		{AuthApplication, "ApplicationAuth"},
		{AuthMethod(0), "Unknown"},
		{AuthMethod(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.method.String(); got != tt.want {
			t.Errorf("AuthMethod(%d).String() = %q, want %q", int(tt.method), got, tt.want)
		}
	}
}

func TestAuthMethodMarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]AuthMethod{"method": AuthSSLCertificate})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(b), `{"method":"SslCertificate"}`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestOptional(t *testing.T) {
	var absent Optional[string]
	if absent.Present() {
		t.Fatal("zero Optional is present")
	}
	if got := absent.Or("fallback"); got != "fallback" {
		t.Fatalf("Or() = %q", got)
	}

	present := Some("")
	v, ok := present.Get()
	if !ok || v != "" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if got := present.Or("fallback"); got != "" {
		t.Fatalf("Or() = %q, want stored empty string", got)
	}
}

func TestIdentityRecord(t *testing.T) {
	id := Identity{
		IP:         Some(netip.MustParseAddr("2001:db8::1")),
		Username:   Some("jdoe"),
		AuthMethod: AuthBasic,
	}

	want := map[string]string{
		"clientIpAddress":      "2001:db8::1",
		"computerName":         UnknownHost,
		"userName":             "jdoe",
		"userAgent":            UnknownAgent,
		"authenticationMethod": "Basic",
	}
	if diff := cmp.Diff(want, id.Record().Map()); diff != "" {
		t.Fatalf("Record().Map() mismatch (-want +got):\n%s", diff)
	}

	if got := (Identity{IP: Some(netip.Addr{})}).Record().IPAddress; got != UnknownIP {
		t.Fatalf("invalid present address rendered as %q", got)
	}
}

func TestMergedIdentityMap(t *testing.T) {
	m := MergedIdentity{
		PublicIPAddress:  "203.0.113.5",
		PrivateIPAddress: NotDetected,
		ComputerName:     "LAPTOP-X",
		Username:         "jdoe",
		UserAgent:        "curl/8.0",
		AuthMethod:       AuthAnonymous,
	}

	got := m.Map()
	if got["clientIpAddress"] != got["publicIpAddress"] {
		t.Fatalf("clientIpAddress %q does not mirror publicIpAddress %q", got["clientIpAddress"], got["publicIpAddress"])
	}
	if len(got) != 7 {
		t.Fatalf("Map() has %d keys, want 7", len(got))
	}
}

func TestNewSelfReport(t *testing.T) {
	got := NewSelfReport(" 198.51.100.7 ", "unknown", "LAPTOP-X\n", "")

	if v, ok := got.PublicIP.Get(); !ok || v != "198.51.100.7" {
		t.Errorf("PublicIP = %q, %v", v, ok)
	}
	if got.PrivateIP.Present() {
		t.Error("sentinel private IP kept")
	}
	if v, ok := got.ComputerName.Get(); !ok || v != "LAPTOP-X" {
		t.Errorf("ComputerName = %q, %v", v, ok)
	}
	if got.Username.Present() {
		t.Error("empty username kept")
	}
}

func TestIsSelfReportSentinel(t *testing.T) {
	for _, v := range []string{"Unknown", "unknown", " Unknown-User ", "UNKNOWN-HOST", "Not-Detected", "webrtc-not-supported", "WebRTC-Error", "No-Local-IP-Found", "detection-timeout", "null"} {
		if !IsSelfReportSentinel(v) {
			t.Errorf("IsSelfReportSentinel(%q) = false", v)
		}
	}
	for _, v := range []string{"", "jdoe", "Unknown User", "10.0.0.1"} {
		if IsSelfReportSentinel(v) {
			t.Errorf("IsSelfReportSentinel(%q) = true", v)
		}
	}
}
