package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/panyam/tracktime/apierr"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one tracker request, retry included.
const DefaultTimeout = 30 * time.Second

// Client sends signed requests to the tracker REST API.
type Client struct {
	baseURL    string
	mode       Mode
	transport  *AuthTransport
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

type clientOptions struct {
	base        http.RoundTripper
	timeout     time.Duration
	invalidator Invalidator
	baseURL     string
	logger      zerolog.Logger
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

// WithTransport sets the base transport that signed requests go through.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInvalidator enables the invalidate-and-retry-once policy on 401.
func WithInvalidator(inv Invalidator) ClientOption {
	return func(o *clientOptions) {
		o.invalidator = inv
	}
}

// WithBaseURL replaces the resolved base URL, e.g. to target a staging gateway.
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// New builds a Client. It fails before any I/O when creds is nil or the
// selected variant is missing a field.
func New(creds Credentials, opts ...ClientOption) (*Client, error) {
	if creds == nil {
		return nil, apierr.ConfigIncomplete("request signer", "credentials")
	}
	baseURL, _, err := creds.Resolve()
	if err != nil {
		return nil, err
	}

	o := &clientOptions{
		base:    http.DefaultTransport,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.baseURL != "" {
		baseURL = o.baseURL
	}

	transport, err := NewAuthTransport(o.base, creds)
	if err != nil {
		return nil, err
	}
	transport.Invalidator = o.invalidator
	transport.Logger = o.logger

	return &Client{
		baseURL:    baseURL,
		mode:       creds.Mode(),
		transport:  transport,
		httpClient: &http.Client{Transport: transport},
		timeout:    o.timeout,
		logger:     o.logger,
	}, nil
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// Mode returns the auth scheme this client was built with.
func (c *Client) Mode() Mode { return c.mode }

// AuthHeader returns the Authorization header value currently in use.
// Never log it.
func (c *Client) AuthHeader() string {
	_, header, _ := c.transport.Credentials().Resolve()
	return header
}

// HTTPClient returns the underlying HTTP client with signing applied.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do sends a request to endpoint, relative to the client's base URL, and
// decodes a 2xx JSON response into T. A non-nil body is sent as JSON. Empty
// responses yield the zero T. Non-2xx responses fail with the status and
// response text.
func Do[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var out T
	op := method + " " + endpoint

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return out, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = apierr.Classify(op, err)
		c.logger.Error().Err(err).Str("mode", string(c.mode)).Msg("Tracker request failed")
		return out, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, apierr.Classify(op, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Tracker request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, apierr.ProviderHTTP(op, resp.StatusCode, string(data))
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &apierr.Error{Kind: apierr.KindInternal, Op: op, Msg: "failed to parse response", Err: err}
	}
	return out, nil
}

func (c *Client) url(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// User is the tracker account behind the client's credentials.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
	TimeZone     string `json:"timeZone,omitempty"`
}

// Myself fetches the current user. It is the cheapest call that proves the
// credentials work.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	return Do[*User](ctx, c, http.MethodGet, "/myself", nil)
}
