package api

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	AuthorizationHeader = "Authorization"
	CorrelationIDHeader = "X-Correlation-Id"
	requestIDHeader     = "X-Request-Id"
)

// Transport decorates outgoing requests with a correlation id and, when a
// token source is set and holds a token, a bearer Authorization header.
// Headers the caller already set are never replaced.
type Transport struct {
	Base   http.RoundTripper
	Source oauth2.TokenSource
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base. A nil source only adds correlation ids.
func NewTransport(base http.RoundTripper, source oauth2.TokenSource) *Transport {
	return &Transport{Base: base, Source: source}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if req.Header.Get(CorrelationIDHeader) == "" {
		req.Header.Set(CorrelationIDHeader, uuid.NewString())
	}

	if t.Source != nil && req.Header.Get(AuthorizationHeader) == "" {
		if tok, err := t.Source.Token(); err == nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}

	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
