package tracktime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/oauth2"
)

// AppConfig holds everything needed to build an App.
type AppConfig struct {
	Store SettingsStore

	// RedirectURI must match the URI registered with the identity provider
	// byte for byte.
	RedirectURI string

	// SettingsPath is where every callback outcome is redirected. Defaults
	// to /settings.
	SettingsPath string

	// AdminSecret signs admin JWTs. Admin routes answer 500 while it is empty.
	AdminSecret string

	// SessionLifetime bounds the browser session holding the pending OAuth
	// state. Defaults to 1 hour.
	SessionLifetime time.Duration

	OAuthOptions   []oauth2.Option
	TrackerOptions []client.ClientOption

	Logger zerolog.Logger
}

// App serves the OAuth and tracker endpoints.
type App struct {
	router  *mux.Router
	Session *scs.SessionManager
	Auth    *Session
	Flow    *Flow
	Store   SettingsStore
	Admin   *AdminMiddleware

	SettingsPath   string
	TrackerOptions []client.ClientOption
	Logger         zerolog.Logger
}

// NewApp builds an App and hydrates its auth session from the store.
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "/settings"
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = time.Hour
	}

	auth := NewSession()
	if err := auth.Hydrate(ctx, cfg.Store); err != nil {
		return nil, err
	}
	st := auth.Snapshot()
	cfg.Logger.Info().
		Str("auth_type", string(st.Mode)).
		Bool("authenticated", st.Authenticated()).
		Str("site_name", st.SiteName).
		Msg("Auth session hydrated")

	sm := scs.New()
	sm.Lifetime = cfg.SessionLifetime
	sm.Cookie.Name = "tracktime_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	// Lax keeps the cookie on the top-level redirect back from the provider.
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = strings.HasPrefix(cfg.RedirectURI, "https://")

	a := &App{
		Session: sm,
		Auth:    auth,
		Store:   cfg.Store,
		Flow: &Flow{
			Store:       cfg.Store,
			Session:     auth,
			RedirectURI: cfg.RedirectURI,
			Options:     cfg.OAuthOptions,
			Logger:      cfg.Logger,
		},
		Admin:          &AdminMiddleware{Secret: cfg.AdminSecret, Logger: cfg.Logger},
		SettingsPath:   cfg.SettingsPath,
		TrackerOptions: cfg.TrackerOptions,
		Logger:         cfg.Logger,
	}
	a.setupRoutes()
	return a, nil
}

func (a *App) setupRoutes() {
	r := mux.NewRouter()
	admin := a.Admin.Wrap

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/oauth-callback", a.handleOAuthRedirect).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jira/oauth/auth-url", a.handleAuthURL).Methods(http.MethodGet)
	api.HandleFunc("/jira/oauth/callback", a.handleOAuthCallback).Methods(http.MethodPost)
	api.HandleFunc("/jira/oauth/status", a.handleStatus).Methods(http.MethodGet)
	api.Handle("/jira/oauth/refresh", admin(http.HandlerFunc(a.handleRefresh))).Methods(http.MethodPost)
	api.Handle("/jira/oauth/disconnect", admin(http.HandlerFunc(a.handleDisconnect))).Methods(http.MethodPost)
	api.HandleFunc("/jira/myself", a.handleMyself).Methods(http.MethodGet)
	api.Handle("/jira/basic", admin(http.HandlerFunc(a.handleSaveBasic))).Methods(http.MethodPost)
	api.HandleFunc("/oauth/config", a.handleGetOAuthConfig).Methods(http.MethodGet)
	api.Handle("/oauth/config", admin(http.HandlerFunc(a.handleSaveOAuthConfig))).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	// Without this a method mismatch inside the /api subrouter falls through
	// to NotFoundHandler.
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})
	r.MethodNotAllowedHandler = methodNotAllowed
	api.MethodNotAllowedHandler = methodNotAllowed
	a.router = r
}

// Handler returns the full handler chain: request logging, browser
// sessions, then routing.
func (a *App) Handler() http.Handler {
	return LoggingMiddleware(a.Logger)(a.Session.LoadAndSave(a.router))
}

// TrackerClient builds a request signer from the current session. It is
// built per call so a mode switch applies to the next request. In OAuth
// mode a 401 refreshes the token and retries once.
func (a *App) TrackerClient() (*client.Client, error) {
	creds, err := a.Auth.Snapshot().Credentials()
	if err != nil {
		return nil, err
	}
	opts := append([]client.ClientOption{client.WithLogger(a.Logger)}, a.TrackerOptions...)
	if creds.Mode() == client.ModeOAuth {
		opts = append(opts, client.WithInvalidator(a.Flow))
	}
	return client.New(creds, opts...)
}
