package tracktime

import (
	"context"
	"time"
)

// Setting keys persisted in the SettingsStore.
const (
	KeyOAuthClientID     = "JIRA_OAUTH_CLIENT_ID"
	KeyOAuthClientSecret = "JIRA_OAUTH_CLIENT_SECRET"
	KeyOAuthAccessToken  = "JIRA_OAUTH_ACCESS_TOKEN"
	KeyOAuthRefreshToken = "JIRA_OAUTH_REFRESH_TOKEN"
	KeySiteID            = "JIRA_SITE_ID"
	KeySiteURL           = "JIRA_SITE_URL"
	KeySiteName          = "JIRA_SITE_NAME"
	KeyAuthType          = "JIRA_AUTH_TYPE"
	KeyDomain            = "JIRA_DOMAIN"
	KeyEmail             = "JIRA_EMAIL"
	KeyAPIToken          = "JIRA_API_TOKEN"
)

// SecretKeys are the settings whose values must never be logged or returned
// to a browser.
var SecretKeys = []string{
	KeyOAuthClientSecret,
	KeyOAuthAccessToken,
	KeyOAuthRefreshToken,
	KeyAPIToken,
}

// Setting is one stored key/value record.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsStore is the durable key/value store for OAuth client
// configuration, tokens and the active site. Writes are atomic per key; there
// are no multi-key transactions.
type SettingsStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set creates or replaces the value for key and returns the stored record.
	Set(ctx context.Context, key, value string) (*Setting, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
}

// getString returns the value for key, or "" when absent.
func getString(ctx context.Context, s SettingsStore, key string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}
