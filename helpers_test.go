package tracktime_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/oauth2"
	"github.com/panyam/tracktime/stores"
)

const (
	testRedirectURI = "https://app.example/oauth-callback"
	testAdminSecret = "test-admin-secret-for-testing-only"
)

// recordingStore records every key written through Set.
type recordingStore struct {
	*stores.MemoryStore
	mu   sync.Mutex
	sets []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: stores.NewMemoryStore()}
}

func (s *recordingStore) Set(ctx context.Context, key, value string) (*tt.Setting, error) {
	s.mu.Lock()
	s.sets = append(s.sets, key)
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *recordingStore) setCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sets...)
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	s.sets = nil
	s.mu.Unlock()
}

func (s *recordingStore) value(key string) string {
	v, _, _ := s.MemoryStore.Get(context.Background(), key)
	return v
}

// mockProvider is an identity provider answering the token and
// accessible-resources endpoints.
type mockProvider struct {
	*httptest.Server

	mu             sync.Mutex
	exchangeStatus int
	exchangeResp   map[string]any
	refreshResp    map[string]any
	onRefresh      func()
	resources      []map[string]any
	userStatus     int
	lastGrant      url.Values
	tokenCalls     int32
	resourceCalls  int32
}

func newMockProvider(t *testing.T) *mockProvider {
	p := &mockProvider{
		exchangeStatus: http.StatusOK,
		userStatus:     http.StatusOK,
		exchangeResp: map[string]any{
			"access_token":  "AT1",
			"refresh_token": "RT1",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"scope":         "read:jira-work",
		},
		refreshResp: map[string]any{
			"access_token": "AT2",
			"expires_in":   3600,
			"token_type":   "Bearer",
		},
		resources: []map[string]any{
			{"id": "site-1", "name": "Acme", "url": "https://acme.atlassian.net", "scopes": []string{}, "avatarUrl": ""},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.tokenCalls, 1)
		r.ParseForm()
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lastGrant = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") == "refresh_token" {
			if p.onRefresh != nil {
				p.onRefresh()
			}
			json.NewEncoder(w).Encode(p.refreshResp)
			return
		}
		if p.exchangeStatus != http.StatusOK {
			w.WriteHeader(p.exchangeStatus)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
			return
		}
		json.NewEncoder(w).Encode(p.exchangeResp)
	})
	mux.HandleFunc("/oauth/token/accessible-resources", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.resourceCalls, 1)
		p.mu.Lock()
		defer p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.resources)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.userStatus != http.StatusOK {
			http.Error(w, "unavailable", p.userStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"account_id": "acc-1", "name": "Test User", "email": "test@example.com"})
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *mockProvider) endpoints() oauth2.Endpoints {
	return oauth2.Endpoints{
		AuthURL:      p.URL + "/authorize",
		TokenURL:     p.URL + "/oauth/token",
		ResourcesURL: p.URL + "/oauth/token/accessible-resources",
		UserInfoURL:  p.URL + "/me",
	}
}

func (p *mockProvider) setResources(r []map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources = r
}

func (p *mockProvider) setExchangeStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeStatus = status
}

func (p *mockProvider) setUserStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userStatus = status
}

func (p *mockProvider) setRefreshResp(resp map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshResp = resp
}

// setOnRefresh runs fn inside the token endpoint before a refresh response.
func (p *mockProvider) setOnRefresh(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRefresh = fn
}

func (p *mockProvider) grant() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGrant
}

func (p *mockProvider) calls() (token, resources int32) {
	return atomic.LoadInt32(&p.tokenCalls), atomic.LoadInt32(&p.resourceCalls)
}

type testEnv struct {
	provider *mockProvider
	store    *recordingStore
	app      *tt.App
	server   *httptest.Server
	client   *http.Client
}

type envOption func(*tt.AppConfig)

func withTracker(u string) envOption {
	return func(c *tt.AppConfig) {
		c.TrackerOptions = append(c.TrackerOptions, client.WithBaseURL(u))
	}
}

// newTestEnv starts the app against a mock provider. seed runs against the
// store before the app hydrates; its writes are not recorded.
func newTestEnv(t *testing.T, seed map[string]string, opts ...envOption) *testEnv {
	provider := newMockProvider(t)
	store := newRecordingStore()
	for k, v := range seed {
		store.Set(context.Background(), k, v)
	}
	store.reset()

	cfg := tt.AppConfig{
		Store:       store,
		RedirectURI: testRedirectURI,
		AdminSecret: testAdminSecret,
		OAuthOptions: []oauth2.Option{
			oauth2.WithEndpoints(provider.endpoints()),
			oauth2.WithTimeout(5 * time.Second),
		},
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	app, err := tt.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	// The test server speaks plain HTTP.
	app.Session.Cookie.Secure = false

	server := httptest.NewServer(app.Handler())
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{provider: provider, store: store, app: app, server: server, client: httpClient}
}

var configuredSeed = map[string]string{
	tt.KeyOAuthClientID:     "abc",
	tt.KeyOAuthClientSecret: "xyz",
}

func (e *testEnv) get(t *testing.T, path string, header ...string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(t *testing.T, path string, body any, header ...string) *http.Response {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) adminHeader(t *testing.T) []string {
	token, err := tt.IssueAdminToken(testAdminSecret, "admin@example.com", time.Minute)
	require.NoError(t, err)
	return []string{"Authorization", "Bearer " + token}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// redirectQuery asserts a redirect to the settings page and returns its query.
func redirectQuery(t *testing.T, resp *http.Response) url.Values {
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/settings", loc.Path)
	return loc.Query()
}
