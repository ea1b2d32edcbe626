package tracktime

import (
	"context"
	"net/http"
	"net/url"

	"github.com/panyam/tracktime/apierr"
	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/oauth2"
)

// Session key for the state issued with the last authorization URL.
const pendingStateKey = "oauth_pending_state"

// ReasonStateMismatch is the redirect code for a callback whose state does
// not match the one issued to this browser.
const ReasonStateMismatch = "state_mismatch"

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthURL issues a fresh state, remembers it in the browser session
// and returns the provider URL to open.
func (a *App) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	state, err := oauth2.GenerateState()
	if err != nil {
		writeError(w, err)
		return
	}
	authURL, err := a.Flow.AuthURL(r.Context(), state)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Cannot build authorization URL")
		writeError(w, err)
		return
	}
	a.Session.Put(r.Context(), pendingStateKey, state)
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL, "state": state})
}

// checkState compares state with the one issued to this browser. A callback
// without a pending state is let through since a popup may not share the
// session cookie with the window that started the flow.
func (a *App) checkState(ctx context.Context, state string) error {
	pending := a.Session.PopString(ctx, pendingStateKey)
	if pending == "" {
		a.Logger.Warn().Bool("has_state", state != "").Msg("OAuth callback without a pending state in session")
		return nil
	}
	if state != pending {
		a.Logger.Warn().Msg("OAuth callback state does not match the pending state")
		return &apierr.Error{Kind: apierr.KindProviderDenied, Op: "oauth callback", Msg: "state mismatch", Reason: ReasonStateMismatch}
	}
	return nil
}

func (a *App) runCallback(r *http.Request, p CallbackParams) (*FlowResult, error) {
	if p.Error == "" && p.Code != "" {
		if err := a.checkState(r.Context(), p.State); err != nil {
			return nil, err
		}
	}
	// The exchange runs to completion even if the browser goes away.
	return a.Flow.Handle(context.WithoutCancel(r.Context()), p)
}

// handleOAuthRedirect is the provider's redirect target. Every outcome ends
// in a redirect to the settings page.
func (a *App) handleOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if _, err := a.runCallback(r, p); err != nil {
		a.Logger.Error().Err(err).Str("code", apierr.Code(err)).Msg("OAuth callback failed")
		a.redirectWithError(w, r, err)
		return
	}
	http.Redirect(w, r, a.settingsURL(url.Values{"oauth": {"success"}}), http.StatusFound)
}

type siteJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// handleOAuthCallback completes a flow whose code was forwarded by a popup.
func (a *App) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var p CallbackParams
	if err := decodeJSON(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid_request", "message": err.Error()})
		return
	}
	res, err := a.runCallback(r, p)
	if err != nil {
		a.Logger.Error().Err(err).Str("code", apierr.Code(err)).Msg("OAuth callback failed")
		writeError(w, err)
		return
	}
	sites := make([]siteJSON, 0, len(res.AccessibleSites))
	for _, s := range res.AccessibleSites {
		sites = append(sites, siteJSON{ID: s.ID, Name: s.Name, URL: s.URL})
	}
	out := map[string]any{
		"success":         true,
		"siteName":        res.Site.Name,
		"siteUrl":         res.Site.URL,
		"accessibleSites": sites,
	}
	if res.Account != nil {
		out["account"] = map[string]string{"accountId": res.Account.AccountID, "name": res.Account.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := LoadOAuthConfigStatus(r.Context(), a.Store)
	if err != nil {
		writeError(w, err)
		return
	}
	st := a.Auth.Snapshot()
	resp := map[string]any{
		"oauthConfigured": cfg.Configured,
		"authenticated":   st.Authenticated(),
		"authType":        st.Mode,
	}
	if st.Mode == AuthModeOAuth && st.SiteID != "" {
		resp["siteName"] = st.SiteName
		resp["siteUrl"] = st.SiteURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := a.Flow.Refresh(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("Token refresh failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresIn": tokens.ExpiresIn,
	})
}

func (a *App) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := a.Flow.Disconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	a.Logger.Info().Str("admin", AdminSubject(r.Context())).Msg("OAuth disconnected by admin")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "authType": AuthModeBasic})
}

// handleMyself proves the active credentials by fetching the current
// tracker user.
func (a *App) handleMyself(w http.ResponseWriter, r *http.Request) {
	c, err := a.TrackerClient()
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := c.Myself(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authType": c.Mode(), "user": user})
}

type basicAuthRequest struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

func (a *App) handleSaveBasic(w http.ResponseWriter, r *http.Request) {
	var req basicAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid_request", "message": err.Error()})
		return
	}
	creds := client.BasicAuth{Domain: req.Domain, Username: req.Email, APIToken: req.APIToken}
	if err := SaveBasicAuth(r.Context(), a.Store, creds); err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.Store.Set(r.Context(), KeyAuthType, string(AuthModeBasic)); err != nil {
		writeError(w, err)
		return
	}
	a.Auth.Update(func(s *SessionState) {
		s.Mode = AuthModeBasic
		s.Domain, s.Username, s.APIToken = req.Domain, req.Email, req.APIToken
	})
	a.Logger.Info().Str("domain", req.Domain).Str("api_token", client.Redact(req.APIToken)).Msg("Basic credentials stored")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "authType": AuthModeBasic})
}

type oauthConfigRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (a *App) handleSaveOAuthConfig(w http.ResponseWriter, r *http.Request) {
	var req oauthConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid_request", "message": err.Error()})
		return
	}
	if err := SaveOAuthConfig(r.Context(), a.Store, req.ClientID, req.ClientSecret); err != nil {
		writeError(w, err)
		return
	}
	a.Logger.Info().Str("admin", AdminSubject(r.Context())).Bool("has_client_secret", true).Msg("OAuth client registration stored")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configured": true})
}

func (a *App) handleGetOAuthConfig(w http.ResponseWriter, r *http.Request) {
	st, err := LoadOAuthConfigStatus(r.Context(), a.Store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
