// Package tracktime connects a time-tracking service to an issue tracker.
//
// It drives the OAuth 2.0 authorization code flow against the tracker's
// identity provider, keeps the resulting tokens in a SettingsStore, and signs
// every outbound tracker request with either static API token credentials
// (basic mode) or the OAuth access token (oauth mode).
//
// # Architecture
//
// SettingsStore: the durable key/value store for the OAuth client
// registration, tokens and selected site. Backends live under stores/.
//
// Session: the process-local copy of the active auth mode and credentials.
// It is hydrated from the store at startup and replaced after every write.
//
// Flow: the server side of the authorization flow. The provider redirect
// (GET /oauth-callback) and the popup-forwarded callback
// (POST /api/jira/oauth/callback) both run Flow.Handle.
//
// App: the HTTP surface, built on gorilla/mux with scs browser sessions.
//
// # Basic Usage
//
//	store, _ := fs.NewFSSettingsStore("")
//	app, err := tracktime.NewApp(ctx, tracktime.AppConfig{
//	    Store:       store,
//	    RedirectURI: "https://time.example.com/oauth-callback",
//	    AdminSecret: os.Getenv("TRACKTIME_ADMIN_SECRET"),
//	    Logger:      logger.New(),
//	})
//	http.ListenAndServe(":8080", app.Handler())
//
// # Settings Surface
//
// Every callback outcome redirects to SettingsPath. Success carries
// oauth=success; failures carry error=<code>, where code is one of
// oauth_not_configured, no_code, no_jira_sites, state_mismatch, the
// provider's error parameter, or an escaped error message.
package tracktime
