package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestAuthTransport_RetriesOnceAfterInvalidate(t *testing.T) {
	mt := &mockTransport{respond: func(r *http.Request, _ int) (*http.Response, error) {
		if r.Header.Get("Authorization") == "Bearer AT2" {
			return jsonResponse(200, `{"accountId":"acc-1"}`), nil
		}
		return jsonResponse(401, `{"message":"expired"}`), nil
	}}

	invalidations := 0
	inv := InvalidatorFunc(func(ctx context.Context, rejected Credentials) (Credentials, error) {
		invalidations++
		old := rejected.(OAuth)
		return OAuth{AccessToken: "AT2", SiteID: old.SiteID}, nil
	})

	c, err := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt), WithInvalidator(inv))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	user, err := c.Myself(context.Background())
	if err != nil {
		t.Fatalf("Myself() error = %v", err)
	}
	if user.AccountID != "acc-1" {
		t.Errorf("AccountID = %q", user.AccountID)
	}
	if invalidations != 1 || mt.calls() != 2 {
		t.Errorf("invalidations = %d, calls = %d; want 1, 2", invalidations, mt.calls())
	}
	if c.AuthHeader() != "Bearer AT2" {
		t.Errorf("AuthHeader() = %q after refresh", c.AuthHeader())
	}

	// The refreshed token is reused without another invalidation.
	if _, err := c.Myself(context.Background()); err != nil {
		t.Fatalf("second Myself() error = %v", err)
	}
	if invalidations != 1 || mt.calls() != 3 {
		t.Errorf("invalidations = %d, calls = %d; want 1, 3", invalidations, mt.calls())
	}
}

func TestAuthTransport_RetryReplaysBody(t *testing.T) {
	mt := &mockTransport{respond: func(r *http.Request, n int) (*http.Response, error) {
		if n == 0 {
			return jsonResponse(401, ``), nil
		}
		return jsonResponse(201, `{}`), nil
	}}
	inv := InvalidatorFunc(func(ctx context.Context, _ Credentials) (Credentials, error) {
		return OAuth{AccessToken: "AT2", SiteID: "S1"}, nil
	})
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt), WithInvalidator(inv))

	if _, err := Do[map[string]any](context.Background(), c, http.MethodPost, "/issue", map[string]string{"summary": "x"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if mt.bodies[0] == "" || mt.bodies[0] != mt.bodies[1] {
		t.Errorf("bodies = %q, %q; want identical non-empty", mt.bodies[0], mt.bodies[1])
	}
}

func TestAuthTransport_NoSecondRetry(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(401, `{"message":"still unauthorized"}`), nil
	}}
	invalidations := 0
	inv := InvalidatorFunc(func(ctx context.Context, _ Credentials) (Credentials, error) {
		invalidations++
		return OAuth{AccessToken: "AT2", SiteID: "S1"}, nil
	})
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt), WithInvalidator(inv))

	_, err := c.Myself(context.Background())
	if err == nil || mt.calls() != 2 || invalidations != 1 {
		t.Errorf("err = %v, calls = %d, invalidations = %d; want 401 after exactly one retry", err, mt.calls(), invalidations)
	}
}

func TestAuthTransport_InvalidateFailureReturnsOriginal401(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(401, `{"message":"expired"}`), nil
	}}
	inv := InvalidatorFunc(func(ctx context.Context, _ Credentials) (Credentials, error) {
		return nil, errors.New("no refresh token")
	})
	c, _ := New(OAuth{AccessToken: "AT1", SiteID: "S1"}, WithTransport(mt), WithInvalidator(inv))

	_, err := c.Myself(context.Background())
	if err == nil || mt.calls() != 1 {
		t.Errorf("err = %v, calls = %d; want the first 401 and no retry", err, mt.calls())
	}
}

func TestAuthTransport_WithoutInvalidator(t *testing.T) {
	mt := &mockTransport{respond: func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(401, `{}`), nil
	}}
	c, _ := New(BasicAuth{Domain: "acme", Username: "u", APIToken: "t"}, WithTransport(mt))
	if _, err := c.Myself(context.Background()); err == nil || mt.calls() != 1 {
		t.Errorf("err = %v, calls = %d; want 401 and one call", err, mt.calls())
	}
}
