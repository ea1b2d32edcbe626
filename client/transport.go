package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Invalidator replaces credentials the tracker rejected. For OAuth this
// refreshes the access token and persists it.
type Invalidator interface {
	Invalidate(ctx context.Context, rejected Credentials) (Credentials, error)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, rejected Credentials) (Credentials, error)

func (f InvalidatorFunc) Invalidate(ctx context.Context, rejected Credentials) (Credentials, error) {
	return f(ctx, rejected)
}

// AuthTransport attaches the Authorization header. With an Invalidator set, a
// 401 response invalidates the credentials and the request is retried once
// with the replacement. Without one, 401 is returned as is.
type AuthTransport struct {
	Base        http.RoundTripper
	Invalidator Invalidator
	Logger      zerolog.Logger

	mu     sync.Mutex
	creds  Credentials
	header string
}

// NewAuthTransport creates an AuthTransport for already resolved credentials.
func NewAuthTransport(base http.RoundTripper, creds Credentials) (*AuthTransport, error) {
	_, header, err := creds.Resolve()
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{Base: base, creds: creds, header: header, Logger: zerolog.Nop()}, nil
}

// Credentials returns the credentials currently used for signing.
func (t *AuthTransport) Credentials() Credentials {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creds
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	creds, header := t.creds, t.header
	t.mu.Unlock()

	resp, err := t.Base.RoundTrip(withAuth(req, header))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.Invalidator == nil {
		return resp, err
	}
	// The body has been consumed by the first attempt.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	fresh, err := t.Invalidator.Invalidate(req.Context(), creds)
	if err != nil {
		t.Logger.Warn().Err(err).Str("mode", string(creds.Mode())).Msg("Credential invalidation failed, returning 401")
		return resp, nil
	}
	_, freshHeader, err := fresh.Resolve()
	if err != nil {
		t.Logger.Warn().Err(err).Msg("Replacement credentials incomplete, returning 401")
		return resp, nil
	}

	t.mu.Lock()
	t.creds, t.header = fresh, freshHeader
	t.mu.Unlock()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	resp.Body.Close()

	t.Logger.Info().Str("url", req.URL.Path).Msg("Retrying request with refreshed credentials")
	return t.Base.RoundTrip(withAuth(retry, freshHeader))
}

func withAuth(req *http.Request, header string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", header)
	return r
}
