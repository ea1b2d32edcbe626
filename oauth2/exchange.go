package oauth2

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/panyam/tracktime/apierr"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// TokenSet is the result of a code exchange or refresh. RefreshToken is empty
// when the provider did not send one.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// TokenClient drives the authorization code grant against the identity
// provider. It holds no tokens and persists nothing.
type TokenClient struct {
	cfg         ClientConfig
	oauthConfig oauth2.Config
	httpClient  *http.Client
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewTokenClient fails with a configuration error, before any I/O, when the
// client id, secret or redirect URI is missing.
func NewTokenClient(cfg ClientConfig, opts ...Option) (*TokenClient, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, apierr.ConfigIncomplete("oauth client", missing...)
	}
	o := newOptions(opts)
	return &TokenClient{
		cfg:         cfg,
		oauthConfig: newOAuthConfig(cfg, o.endpoints),
		httpClient:  o.httpClient,
		timeout:     o.timeout,
		logger:      o.logger,
	}, nil
}

// Config returns the client registration this client was built from.
func (c *TokenClient) Config() ClientConfig {
	return c.cfg
}

// AuthURL builds the provider authorization URL for the given opaque state.
// Consent is always prompted so scope or account changes are surfaced.
func (c *TokenClient) AuthURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", Audience),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens.
func (c *TokenClient) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	if code == "" {
		return nil, &apierr.Error{Kind: apierr.KindMissingCode, Op: "token exchange"}
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	c.logger.Debug().Str("token_url", c.oauthConfig.Endpoint.TokenURL).Msg("Exchanging authorization code")
	tok, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		err = classifyTokenError("token exchange", err)
		c.logger.Error().Err(err).Msg("Authorization code exchange failed")
		return nil, err
	}
	ts := tokenSetFrom(tok)
	c.logger.Info().
		Bool("has_refresh_token", ts.RefreshToken != "").
		Int64("expires_in", ts.ExpiresIn).
		Msg("Authorization code exchanged")
	return ts, nil
}

// Refresh obtains a new access token. RefreshToken in the result is set only
// when the provider rotated it; an omitted or unchanged token comes back
// empty, so callers never rewrite the stored value with the one they read.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, apierr.ConfigIncomplete("token refresh", "refreshToken")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	tok, err := c.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		err = classifyTokenError("token refresh", err)
		c.logger.Error().Err(err).Msg("Access token refresh failed")
		return nil, err
	}
	ts := tokenSetFrom(tok)
	// The token source copies the old refresh token into responses that omit one.
	if ts.RefreshToken == refreshToken {
		ts.RefreshToken = ""
	}
	c.logger.Info().
		Bool("refresh_token_rotated", ts.RefreshToken != "").
		Int64("expires_in", ts.ExpiresIn).
		Msg("Access token refreshed")
	return ts, nil
}

func (c *TokenClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), cancel
}

func classifyTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return apierr.ProviderHTTP(op, status, string(re.Body))
	}
	return apierr.Classify(op, err)
}

func tokenSetFrom(tok *oauth2.Token) *TokenSet {
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		ts.ExpiresIn = int64(math.Round(time.Until(tok.Expiry).Seconds()))
	}
	return ts
}
