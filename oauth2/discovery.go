package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/panyam/tracktime/apierr"
	"github.com/rs/zerolog"
)

// Resource is one tracker site reachable with an access token.
type Resource struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Scopes    []string `json:"scopes"`
	AvatarURL string   `json:"avatarUrl"`
}

// UserInfo is the identity behind an access token.
type UserInfo struct {
	AccountID string         `json:"account_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Picture   string         `json:"picture"`
	Raw       map[string]any `json:"-"`
}

// ResourceClient queries the provider for sites and identity on behalf of an
// access token.
type ResourceClient struct {
	httpClient *http.Client
	timeout    time.Duration
	endpoints  Endpoints
	logger     zerolog.Logger
}

func NewResourceClient(opts ...Option) *ResourceClient {
	o := newOptions(opts)
	return &ResourceClient{
		httpClient: o.httpClient,
		timeout:    o.timeout,
		endpoints:  o.endpoints,
		logger:     o.logger,
	}
}

// AccessibleResources lists the sites the token can reach. An empty list is
// a valid answer and is returned without error.
func (c *ResourceClient) AccessibleResources(ctx context.Context, accessToken string) ([]Resource, error) {
	var resources []Resource
	if err := c.getJSON(ctx, "accessible resources", c.endpoints.ResourcesURL, accessToken, &resources); err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []Resource{}
	}
	c.logger.Debug().Int("count", len(resources)).Msg("Fetched accessible resources")
	return resources, nil
}

// UserInfo fetches the account behind the token.
func (c *ResourceClient) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, "user info", c.endpoints.UserInfoURL, accessToken, &raw); err != nil {
		return nil, err
	}
	info := &UserInfo{Raw: raw}
	info.AccountID, _ = raw["account_id"].(string)
	info.Name, _ = raw["name"].(string)
	info.Email, _ = raw["email"].(string)
	info.Picture, _ = raw["picture"].(string)
	return info, nil
}

func (c *ResourceClient) getJSON(ctx context.Context, op, url, accessToken string, out any) error {
	if accessToken == "" {
		return apierr.ConfigIncomplete(op, "accessToken")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Classify(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierr.ProviderHTTP(op, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierr.Error{Kind: apierr.KindInternal, Op: op, Msg: "failed to parse response", Err: err}
	}
	return nil
}
