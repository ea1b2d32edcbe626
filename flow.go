package tracktime

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/panyam/tracktime/apierr"
	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/oauth2"
)

// CallbackParams are the query parameters the identity provider redirects
// back with, or the same values forwarded by a popup window.
type CallbackParams struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// FlowResult describes the site selected by a completed callback.
type FlowResult struct {
	Site            oauth2.Resource
	AccessibleSites []oauth2.Resource
	HasRefreshToken bool
	// Account is nil when the identity lookup failed.
	Account *oauth2.UserInfo
}

// Flow owns the server side of the authorization code flow and the token
// lifecycle that follows it. Both callback entry points go through Handle.
type Flow struct {
	Store       SettingsStore
	Session     *Session
	RedirectURI string
	// Options are applied to every token and resource client the flow builds.
	Options []oauth2.Option
	Logger  zerolog.Logger

	refreshMu sync.Mutex
}

func (f *Flow) tokenClient(ctx context.Context) (*oauth2.TokenClient, error) {
	cfg, err := LoadOAuthConfig(ctx, f.Store, f.RedirectURI)
	if err != nil {
		return nil, err
	}
	return oauth2.NewTokenClient(cfg, f.options()...)
}

func (f *Flow) options() []oauth2.Option {
	opts := make([]oauth2.Option, 0, len(f.Options)+1)
	opts = append(opts, oauth2.WithLogger(f.Logger))
	return append(opts, f.Options...)
}

// AuthURL builds the provider authorization URL for state using the
// currently stored client registration.
func (f *Flow) AuthURL(ctx context.Context, state string) (string, error) {
	tc, err := f.tokenClient(ctx)
	if err != nil {
		return "", err
	}
	return tc.AuthURL(state), nil
}

// Handle rejects provider errors and missing codes, then completes the flow.
func (f *Flow) Handle(ctx context.Context, p CallbackParams) (*FlowResult, error) {
	if p.Error != "" {
		f.Logger.Warn().
			Str("error", p.Error).
			Str("error_description", p.ErrorDescription).
			Msg("Identity provider returned an error")
		return nil, apierr.ProviderDenied(p.Error)
	}
	if p.Code == "" {
		return nil, &apierr.Error{Kind: apierr.KindMissingCode, Op: "oauth callback"}
	}
	return f.Complete(ctx, p.Code, p.State)
}

// Complete exchanges code for tokens, picks the first accessible site,
// persists tokens and site, and switches the process to OAuth mode. Nothing
// is written unless both the exchange and discovery succeed with at least
// one site. Nothing is retried.
func (f *Flow) Complete(ctx context.Context, code, state string) (*FlowResult, error) {
	tc, err := f.tokenClient(ctx)
	if err != nil {
		f.Logger.Error().Err(err).Msg("OAuth callback received but client is not configured")
		return nil, err
	}

	f.Logger.Info().Bool("has_state", state != "").Msg("Exchanging authorization code")
	tokens, err := tc.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	f.Logger.Info().
		Str("access_token", client.Redact(tokens.AccessToken)).
		Bool("has_refresh_token", tokens.RefreshToken != "").
		Int64("expires_in", tokens.ExpiresIn).
		Msg("Received tokens")

	rc := oauth2.NewResourceClient(f.options()...)
	resources, err := rc.AccessibleResources(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		f.Logger.Warn().Msg("Token grants access to no sites")
		return nil, &apierr.Error{Kind: apierr.KindNoResources, Op: "site discovery", Msg: "no accessible sites for this account"}
	}

	// Multi-site accounts are not disambiguated; the first site wins.
	site := resources[0]
	if len(resources) > 1 {
		f.Logger.Warn().Int("count", len(resources)).Str("site_id", site.ID).Msg("Multiple sites accessible, selecting the first")
	}

	if err := f.persistTokens(ctx, tokens, &site); err != nil {
		return nil, err
	}
	f.Logger.Info().Str("site_id", site.ID).Str("site_name", site.Name).Msg("OAuth connection established")

	// The connection stands without an identity; the lookup is informational.
	account, err := rc.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		f.Logger.Warn().Err(err).Msg("Could not fetch connected account")
	} else {
		f.Logger.Info().Str("account_id", account.AccountID).Msg("Connected account")
	}

	return &FlowResult{
		Site:            site,
		AccessibleSites: resources,
		HasRefreshToken: tokens.RefreshToken != "",
		Account:         account,
	}, nil
}

// persistTokens writes tokens, and site when given, then mirrors them into
// the session. An empty refresh token never replaces a stored one.
func (f *Flow) persistTokens(ctx context.Context, tokens *oauth2.TokenSet, site *oauth2.Resource) error {
	writes := [][2]string{{KeyOAuthAccessToken, tokens.AccessToken}}
	if tokens.RefreshToken != "" {
		writes = append(writes, [2]string{KeyOAuthRefreshToken, tokens.RefreshToken})
	}
	if site != nil {
		writes = append(writes,
			[2]string{KeySiteID, site.ID},
			[2]string{KeySiteURL, site.URL},
			[2]string{KeySiteName, site.Name},
			[2]string{KeyAuthType, string(AuthModeOAuth)},
		)
	}
	for _, kv := range writes {
		if _, err := f.Store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to persist %s: %w", kv[0], err)
		}
	}

	f.Session.Update(func(s *SessionState) {
		s.AccessToken = tokens.AccessToken
		if tokens.RefreshToken != "" {
			s.RefreshToken = tokens.RefreshToken
		}
		if site != nil {
			s.Mode = AuthModeOAuth
			s.SiteID = site.ID
			s.SiteURL = site.URL
			s.SiteName = site.Name
		}
	})
	return nil
}

// Refresh trades the stored refresh token for a new access token and
// persists the result.
func (f *Flow) Refresh(ctx context.Context) (*oauth2.TokenSet, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	refreshToken, err := getString(ctx, f.Store, KeyOAuthRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if refreshToken == "" {
		return nil, apierr.ConfigIncomplete("token refresh", "refreshToken")
	}
	tc, err := f.tokenClient(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := tc.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := f.persistTokens(ctx, tokens, nil); err != nil {
		return nil, err
	}
	f.Logger.Info().Str("access_token", client.Redact(tokens.AccessToken)).Msg("Access token refreshed and stored")
	return tokens, nil
}

// Invalidate implements client.Invalidator. A rejected OAuth token is
// replaced by refreshing; basic credentials cannot be renewed.
func (f *Flow) Invalidate(ctx context.Context, rejected client.Credentials) (client.Credentials, error) {
	old, ok := rejected.(client.OAuth)
	if !ok {
		return nil, fmt.Errorf("%s credentials cannot be refreshed", rejected.Mode())
	}
	// Another request may have refreshed already.
	if current := f.Session.Snapshot(); current.AccessToken != "" && current.AccessToken != old.AccessToken {
		return client.OAuth{AccessToken: current.AccessToken, SiteID: old.SiteID}, nil
	}
	tokens, err := f.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return client.OAuth{AccessToken: tokens.AccessToken, SiteID: old.SiteID}, nil
}

// Disconnect removes the stored OAuth tokens and site and returns the
// process to basic mode. The client registration is kept.
func (f *Flow) Disconnect(ctx context.Context) error {
	for _, key := range []string{KeyOAuthAccessToken, KeyOAuthRefreshToken, KeySiteID, KeySiteURL, KeySiteName} {
		if _, err := f.Store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	if _, err := f.Store.Set(ctx, KeyAuthType, string(AuthModeBasic)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", KeyAuthType, err)
	}
	f.Session.Update(func(s *SessionState) {
		s.Mode = AuthModeBasic
		s.AccessToken, s.RefreshToken = "", ""
		s.SiteID, s.SiteURL, s.SiteName = "", "", ""
	})
	f.Logger.Info().Msg("OAuth connection removed")
	return nil
}
