package transport

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// headerInjectingTransport wraps an http.RoundTripper to inject the bearer
// token, User-Agent and a request ID into every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	origin    *url.URL
	token     string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if clone.Header.Get(RequestIDHeader) == "" {
		clone.Header.Set(RequestIDHeader, uuid.NewString())
	}

	// Redirects may lead elsewhere; the token only goes to the service.
	if t.token != "" && sameOrigin(clone.URL, t.origin) {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	} else {
		clone.Header.Del("Authorization")
	}

	return t.base.RoundTrip(clone)
}
