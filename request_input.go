package netidentity

import (
	"context"
	"net/http"
)

// HeaderValues provides access to request header values by name.
//
// Header names are requested in canonical MIME format (for example
// "X-Forwarded-For"). Lookups must be case-insensitive.
//
// net/http's http.Header satisfies this interface directly.
type HeaderValues interface {
	Values(name string) []string
}

// HeaderValuesFunc adapts a function to the HeaderValues interface.
type HeaderValuesFunc func(name string) []string

// Values implements HeaderValues.
func (f HeaderValuesFunc) Values(name string) []string {
	if f == nil {
		return nil
	}

	return f(name)
}

// RequestInput provides framework-agnostic request data for resolution.
//
// Context defaults to context.Background() when nil. Principal is the name of
// a principal the server authenticated itself (session login, container
// auth); leave it empty when there is none. ClientCertSubject is the subject
// of a verified TLS client certificate, when the server terminated TLS.
type RequestInput struct {
	Context           context.Context
	RemoteAddr        string
	Path              string
	Headers           HeaderValues
	Principal         string
	ClientCertSubject string
}

// InputOption adjusts a RequestInput built by InputFromRequest.
type InputOption func(*RequestInput)

// WithPrincipal sets the authenticated principal name.
func WithPrincipal(name string) InputOption {
	return func(in *RequestInput) {
		in.Principal = name
	}
}

// InputFromRequest builds a RequestInput from a net/http request. The common
// name of the first verified TLS peer certificate becomes ClientCertSubject.
func InputFromRequest(r *http.Request, opts ...InputOption) RequestInput {
	if r == nil {
		return RequestInput{Context: context.Background()}
	}

	in := RequestInput{
		Context:    r.Context(),
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
	}
	if r.URL != nil {
		in.Path = r.URL.Path
	}
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		in.ClientCertSubject = r.TLS.PeerCertificates[0].Subject.CommonName
	}

	for _, opt := range opts {
		opt(&in)
	}

	return in
}

func (in RequestInput) context() context.Context {
	if in.Context == nil {
		return context.Background()
	}

	return in.Context
}

// values returns the header lines for name, tolerating nil header sources.
func (in RequestInput) values(name string) []string {
	if in.Headers == nil || isNilInterface(in.Headers) {
		return nil
	}

	return in.Headers.Values(name)
}

// first returns the first non-blank header line for name.
func (in RequestInput) first(name string) string {
	for _, v := range in.values(name) {
		if v != "" {
			return v
		}
	}
	return ""
}
