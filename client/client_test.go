package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/panyam/tracktime/apierr"
)

// mockTransport records every request and answers from respond.
type mockTransport struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	respond  func(r *http.Request, n int) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, r)
	var body string
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()
	return m.respond(r, n)
}

func (m *mockTransport) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNew_FailsFastWithoutIO(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(200, "{}"), nil
	}}

	incomplete := []Credentials{
		nil,
		BasicAuth{Username: "u", APIToken: "t"},
		BasicAuth{Domain: "d", APIToken: "t"},
		BasicAuth{Domain: "d", Username: "u"},
		OAuth{AccessToken: "AT1"},
		OAuth{SiteID: "site-1"},
	}
	for _, creds := range incomplete {
		c, err := New(creds, WithTransport(mt))
		if c != nil || !errors.Is(err, apierr.ErrConfigIncomplete) {
			t.Errorf("New(%v) = %v, %v; want configuration incomplete", creds, c, err)
		}
	}
	if n := mt.calls(); n != 0 {
		t.Errorf("transport saw %d requests, want 0", n)
	}
}

func TestNew_OAuth(t *testing.T) {
	c, err := New(OAuth{AccessToken: "AT1", SiteID: "S1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.BaseURL() != "https://api.example-tracker.com/ex/jira/S1/rest/api/3" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.AuthHeader() != "Bearer AT1" {
		t.Errorf("AuthHeader() = %q", c.AuthHeader())
	}
	if c.Mode() != ModeOAuth {
		t.Errorf("Mode() = %q", c.Mode())
	}
}

func TestDo_SignsAndDecodes(t *testing.T) {
	mt := &mockTransport{respond: func(r *http.Request, _ int) (*http.Response, error) {
		return jsonResponse(200, `{"accountId":"acc-1","displayName":"Bob","active":true}`), nil
	}}
	c, err := New(BasicAuth{Domain: "acme", Username: "bob", APIToken: "tok"}, WithTransport(mt))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	user, err := c.Myself(context.Background())
	if err != nil {
		t.Fatalf("Myself() error = %v", err)
	}
	if user.AccountID != "acc-1" || user.DisplayName != "Bob" || !user.Active {
		t.Errorf("Myself() = %+v", user)
	}

	r := mt.requests[0]
	if r.URL.String() != "https://acme.example-tracker.net/rest/api/3/myself" {
		t.Errorf("URL = %s", r.URL)
	}
	if got := r.Header.Get("Authorization"); got != "Basic Ym9iOnRvaw==" {
		t.Errorf("Authorization = %q", got)
	}
	if r.Header.Get("Accept") != "application/json" || r.Header.Get("Content-Type") != "application/json" {
		t.Errorf("JSON headers missing: %v", r.Header)
	}
}

func TestDo_SendsJSONBody(t *testing.T) {
	mt := &mockTransport{respond: func(r *http.Request, _ int) (*http.Response, error) {
		return jsonResponse(201, `{"id":"10001"}`), nil
	}}
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt))

	type worklog struct {
		TimeSpentSeconds int    `json:"timeSpentSeconds"`
		Comment          string `json:"comment"`
	}
	out, err := Do[map[string]string](context.Background(), c, http.MethodPost, "issue/PRJ-1/worklog", worklog{3600, "review"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out["id"] != "10001" {
		t.Errorf("Do() = %v", out)
	}
	if mt.requests[0].URL.Path != "/ex/jira/S1/rest/api/3/issue/PRJ-1/worklog" {
		t.Errorf("path = %s", mt.requests[0].URL.Path)
	}
	var sent worklog
	if err := json.Unmarshal([]byte(mt.bodies[0]), &sent); err != nil || sent.TimeSpentSeconds != 3600 {
		t.Errorf("sent body = %q (%v)", mt.bodies[0], err)
	}
}

func TestDo_NonSuccessCarriesStatusAndBody(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(404, `{"errorMessages":["Issue does not exist"]}`), nil
	}}
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt))

	_, err := Do[map[string]any](context.Background(), c, http.MethodGet, "/issue/NOPE-1", nil)
	if !errors.Is(err, apierr.ErrProviderHTTP) {
		t.Fatalf("Do() error = %v, want provider http error", err)
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "Issue does not exist") {
		t.Errorf("error %q missing status or body", err)
	}
}

func TestDo_EmptyResponse(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(204, ""), nil
	}}
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt))

	out, err := Do[map[string]any](context.Background(), c, http.MethodDelete, "/issue/PRJ-1/worklog/1", nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out != nil {
		t.Errorf("Do() = %v, want zero value", out)
	}
}

func TestDo_TransportFailures(t *testing.T) {
	dns := &mockTransport{respond: func(r *http.Request, _ int) (*http.Response, error) {
		return nil, &net.DNSError{Err: "no such host", Name: r.URL.Hostname(), IsNotFound: true}
	}}
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(dns))
	if _, err := c.Myself(context.Background()); !errors.Is(err, apierr.ErrNetwork) {
		t.Errorf("DNS failure: error = %v, want network error", err)
	}

	hang := &mockTransport{respond: func(r *http.Request, _ int) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}}
	c, _ = New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(hang), WithTimeout(50*time.Millisecond))
	_, err := c.Myself(context.Background())
	if !errors.Is(err, apierr.ErrTimeout) {
		t.Errorf("hung request: error = %v, want timeout", err)
	}
}
