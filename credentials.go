package tracktime

import (
	"context"
	"fmt"

	"github.com/panyam/tracktime/apierr"
	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/oauth2"
)

// ReasonOAuthNotConfigured is the redirect code used when no OAuth client
// registration has been stored.
const ReasonOAuthNotConfigured = "oauth_not_configured"

// LoadOAuthConfig reads the OAuth client registration from store. It is
// called at every use and never cached, so a registration edited by an
// admin takes effect on the next request.
func LoadOAuthConfig(ctx context.Context, store SettingsStore, redirectURI string) (oauth2.ClientConfig, error) {
	var cfg oauth2.ClientConfig
	var err error
	if cfg.ClientID, err = getString(ctx, store, KeyOAuthClientID); err != nil {
		return cfg, fmt.Errorf("failed to load oauth client id: %w", err)
	}
	if cfg.ClientSecret, err = getString(ctx, store, KeyOAuthClientSecret); err != nil {
		return cfg, fmt.Errorf("failed to load oauth client secret: %w", err)
	}
	cfg.RedirectURI = redirectURI
	if missing := cfg.Missing(); len(missing) > 0 {
		return cfg, apierr.ConfigIncomplete("oauth config", missing...).WithReason(ReasonOAuthNotConfigured)
	}
	return cfg, nil
}

// SaveOAuthConfig stores a client registration entered by an admin. Empty
// values are rejected rather than stored.
func SaveOAuthConfig(ctx context.Context, store SettingsStore, clientID, clientSecret string) error {
	cfg := oauth2.ClientConfig{ClientID: clientID, ClientSecret: clientSecret, RedirectURI: "-"}
	if missing := cfg.Missing(); len(missing) > 0 {
		return apierr.ConfigIncomplete("oauth config", missing...)
	}
	if _, err := store.Set(ctx, KeyOAuthClientID, clientID); err != nil {
		return fmt.Errorf("failed to store oauth client id: %w", err)
	}
	if _, err := store.Set(ctx, KeyOAuthClientSecret, clientSecret); err != nil {
		return fmt.Errorf("failed to store oauth client secret: %w", err)
	}
	return nil
}

// OAuthConfigStatus reports which parts of the registration exist without
// exposing their values.
type OAuthConfigStatus struct {
	Configured      bool `json:"configured"`
	HasClientID     bool `json:"hasClientId"`
	HasClientSecret bool `json:"hasClientSecret"`
}

func LoadOAuthConfigStatus(ctx context.Context, store SettingsStore) (OAuthConfigStatus, error) {
	var st OAuthConfigStatus
	id, err := getString(ctx, store, KeyOAuthClientID)
	if err != nil {
		return st, err
	}
	secret, err := getString(ctx, store, KeyOAuthClientSecret)
	if err != nil {
		return st, err
	}
	st.HasClientID = id != ""
	st.HasClientSecret = secret != ""
	st.Configured = st.HasClientID && st.HasClientSecret
	return st, nil
}

// SaveBasicAuth stores static token credentials. All three fields are
// required.
func SaveBasicAuth(ctx context.Context, store SettingsStore, creds client.BasicAuth) error {
	if _, _, err := creds.Resolve(); err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{KeyDomain, creds.Domain},
		{KeyEmail, creds.Username},
		{KeyAPIToken, creds.APIToken},
	} {
		if _, err := store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to store %s: %w", kv[0], err)
		}
	}
	return nil
}
