package netidentity

import (
	"strconv"
	"strings"
)

// ntlmsspPrefix is the base64 encoding of the "NTLMSSP\x00" signature that
// starts every NTLM message, including those wrapped in Negotiate.
const ntlmsspPrefix = "TlRMTVNTUA"

// identitySignal is one row of the username priority table.
//
// present reports whether the signal category appears in the request at all;
// asserted returns the raw asserted name, empty when the signal yields none.
type identitySignal struct {
	present  func(in RequestInput, cfg *config) bool
	asserted func(in RequestInput, cfg *config) string
	method   func(in RequestInput) AuthMethod
}

// identitySignals lists username sources in strict priority order.
var identitySignals = []identitySignal{
	{
		// Identity already authenticated by a corporate proxy.
		present:  func(in RequestInput, cfg *config) bool { return forwardedIdentity(in, cfg) != "" },
		asserted: forwardedIdentity,
		method:   fixedMethod(AuthProxyForwarded),
	},
	{
		present:  func(in RequestInput, cfg *config) bool { return certSubject(in, cfg) != "" },
		asserted: func(in RequestInput, cfg *config) string { return subjectCommonName(certSubject(in, cfg)) },
		method:   fixedMethod(AuthSSLCertificate),
	},
	{
		present:  func(in RequestInput, cfg *config) bool { return sanitizeValue(in.Principal, cfg.maxValueLength) != "" },
		asserted: func(in RequestInput, cfg *config) string { return sanitizeValue(in.Principal, cfg.maxValueLength) },
		method:   principalMethod,
	},
	{
		// NTLM is detected only; the token is never decoded.
		present:  func(in RequestInput, _ *config) bool { return isNTLM(in) },
		asserted: func(in RequestInput, _ *config) string { return ntlmPlaceholder(in) },
		method:   fixedMethod(AuthNTLM),
	},
	{
		present:  func(in RequestInput, _ *config) bool { return hasScheme(in, "Basic") },
		asserted: noAssertion,
		method:   fixedMethod(AuthBasic),
	},
	{
		present:  func(in RequestInput, _ *config) bool { return hasScheme(in, "Bearer") },
		asserted: noAssertion,
		method:   fixedMethod(AuthOAuth),
	},
}

func fixedMethod(m AuthMethod) func(RequestInput) AuthMethod {
	return func(RequestInput) AuthMethod { return m }
}

func noAssertion(RequestInput, *config) string { return "" }

// extractUsername returns the first usable asserted name in priority order.
func extractUsername(in RequestInput, cfg *config) (string, bool) {
	for _, signal := range identitySignals {
		raw := signal.asserted(in, cfg)
		if raw == "" {
			continue
		}

		if raw == NTLMPlaceholder {
			return raw, true
		}

		name := sanitizeValue(ExtractUsernameFromDomain(raw), cfg.maxValueLength)
		if name == "" || isUnknownToken(name) {
			continue
		}
		return name, true
	}

	return "", false
}

// classifyAuthentication reports which signal category is present, checked
// in the same order as extractUsername. It never influences the extracted
// name.
func classifyAuthentication(in RequestInput, cfg *config) AuthMethod {
	for _, signal := range identitySignals {
		if signal.present(in, cfg) {
			return signal.method(in)
		}
	}
	return AuthAnonymous
}

// ExtractUsernameFromDomain strips a Windows domain or a mail-style realm from
// an account name: "DOMAIN\user" becomes "user" (text after the last
// backslash) and "user@domain.com" becomes "user" (text before the first @).
// Other strings are returned unchanged.
func ExtractUsernameFromDomain(raw string) string {
	if i := strings.LastIndexByte(raw, '\\'); i >= 0 {
		return raw[i+1:]
	}
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func forwardedIdentity(in RequestInput, cfg *config) string {
	for _, name := range cfg.identityHeaders {
		v := sanitizeValue(in.first(name), cfg.maxValueLength)
		if v != "" && !isUnknownToken(v) {
			return v
		}
	}
	return ""
}

func certSubject(in RequestInput, cfg *config) string {
	if v := sanitizeValue(in.ClientCertSubject, cfg.maxValueLength); v != "" {
		return v
	}
	for _, name := range cfg.certSubjectHeaders {
		v := sanitizeValue(in.first(name), cfg.maxValueLength)
		if v != "" && !isUnknownToken(v) && v != "(null)" {
			return v
		}
	}
	return ""
}

// subjectCommonName returns the CN attribute of a distinguished name in
// either RFC 2253 ("CN=jdoe,OU=IT") or OpenSSL slash form ("/OU=IT/CN=jdoe").
// Backslash escapes and quoted values are honored, so "CN=Doe\, John"
// yields "Doe, John". Subjects without a CN are returned whole.
func subjectCommonName(subject string) string {
	isSep := func(c byte) bool { return c == ',' || c == ';' || c == '+' }
	if strings.HasPrefix(subject, "/") {
		isSep = func(c byte) bool { return c == '/' }
	}

	for _, attr := range splitDN(subject, isSep) {
		key, value, ok := strings.Cut(attr, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "CN") {
			return unescapeDNValue(strings.TrimSpace(value))
		}
	}
	return subject
}

// splitDN splits a distinguished name into raw attributes at unescaped,
// unquoted separators. Escapes are left in place for unescapeDNValue.
func splitDN(dn string, isSep func(byte) bool) []string {
	var (
		attrs    []string
		start    int
		escaped  bool
		inQuotes bool
	)

	for i := 0; i < len(dn); i++ {
		c := dn[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && isSep(c):
			attrs = append(attrs, dn[start:i])
			start = i + 1
		}
	}
	return append(attrs, dn[start:])
}

// unescapeDNValue removes surrounding quotes and resolves "\," style and
// "\2C" hex escapes.
func unescapeDNValue(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	if !strings.ContainsRune(v, '\\') {
		return v
	}

	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' || i+1 == len(v) {
			b.WriteByte(c)
			continue
		}
		if i+2 < len(v) {
			if n, err := strconv.ParseUint(v[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		i++
		b.WriteByte(v[i])
	}
	return b.String()
}

// authorization splits the Authorization header into scheme and credentials.
func authorization(in RequestInput) (scheme, credentials string) {
	value := strings.TrimSpace(in.first("Authorization"))
	scheme, credentials, _ = strings.Cut(value, " ")
	return scheme, strings.TrimSpace(credentials)
}

// AuthorizationScheme returns the scheme of the Authorization header, or an
// empty string. Credentials are never returned.
func AuthorizationScheme(in RequestInput) string {
	scheme, _ := authorization(in)
	return scheme
}

func hasScheme(in RequestInput, want string) bool {
	scheme, _ := authorization(in)
	return strings.EqualFold(scheme, want)
}

func isNTLM(in RequestInput) bool {
	scheme, credentials := authorization(in)
	switch {
	case strings.EqualFold(scheme, "NTLM"):
		return true
	case strings.EqualFold(scheme, "Negotiate"):
		return strings.HasPrefix(credentials, ntlmsspPrefix)
	default:
		return false
	}
}

func ntlmPlaceholder(in RequestInput) string {
	if isNTLM(in) {
		return NTLMPlaceholder
	}
	return ""
}

// principalMethod refines a server-authenticated principal by the scheme the
// client presented; a principal without one came from application login.
func principalMethod(in RequestInput) AuthMethod {
	switch {
	case isNTLM(in):
		return AuthNTLM
	case hasScheme(in, "Basic"):
		return AuthBasic
	case hasScheme(in, "Bearer"):
		return AuthOAuth
	default:
		return AuthApplication
	}
}
