package tracktime

import (
	"context"
	"fmt"
	"sync"

	"github.com/panyam/tracktime/apierr"
	"github.com/panyam/tracktime/client"
)

// AuthMode selects how outbound tracker requests are signed. Exactly one
// mode is active for the whole process.
type AuthMode string

const (
	AuthModeBasic AuthMode = "basic"
	AuthModeOAuth AuthMode = "oauth"
)

// ParseAuthMode maps a stored value onto a mode. Anything other than
// "oauth" is basic.
func ParseAuthMode(s string) AuthMode {
	if s == string(AuthModeOAuth) {
		return AuthModeOAuth
	}
	return AuthModeBasic
}

// SessionState is a snapshot of the active mode and the credentials for
// both modes.
type SessionState struct {
	Mode AuthMode

	AccessToken  string
	RefreshToken string
	SiteID       string
	SiteURL      string
	SiteName     string

	Domain   string
	Username string
	APIToken string
}

// Authenticated reports whether the active mode has everything it needs to
// sign a request.
func (s SessionState) Authenticated() bool {
	_, err := s.Credentials()
	return err == nil
}

// Credentials builds the signer input for the active mode. It never falls
// back to the other mode.
func (s SessionState) Credentials() (client.Credentials, error) {
	var creds client.Credentials
	switch s.Mode {
	case AuthModeOAuth:
		creds = client.OAuth{AccessToken: s.AccessToken, SiteID: s.SiteID}
	case AuthModeBasic:
		creds = client.BasicAuth{Domain: s.Domain, Username: s.Username, APIToken: s.APIToken}
	default:
		return nil, apierr.ConfigIncomplete("auth mode", "mode")
	}
	if _, _, err := creds.Resolve(); err != nil {
		return nil, err
	}
	return creds, nil
}

// Session is the process-local cache of the active auth mode and tokens.
// The SettingsStore is the durable copy; Session is hydrated from it at
// startup and updated after every store write that changes it. Readers get
// snapshots, writers replace the whole state.
type Session struct {
	mu    sync.RWMutex
	state SessionState
}

func NewSession() *Session {
	return &Session{state: SessionState{Mode: AuthModeBasic}}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Mode returns the active auth mode.
func (s *Session) Mode() AuthMode {
	return s.Snapshot().Mode
}

// Update applies fn to a copy of the state and stores the result.
func (s *Session) Update(fn func(*SessionState)) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	s.state = next
	return next
}

// Hydrate loads the session from the store.
func (s *Session) Hydrate(ctx context.Context, store SettingsStore) error {
	var st SessionState
	fields := []struct {
		key string
		dst *string
	}{
		{KeyOAuthAccessToken, &st.AccessToken},
		{KeyOAuthRefreshToken, &st.RefreshToken},
		{KeySiteID, &st.SiteID},
		{KeySiteURL, &st.SiteURL},
		{KeySiteName, &st.SiteName},
		{KeyDomain, &st.Domain},
		{KeyEmail, &st.Username},
		{KeyAPIToken, &st.APIToken},
	}
	for _, f := range fields {
		v, err := getString(ctx, store, f.key)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", f.key, err)
		}
		*f.dst = v
	}
	mode, err := getString(ctx, store, KeyAuthType)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", KeyAuthType, err)
	}
	st.Mode = ParseAuthMode(mode)

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}
