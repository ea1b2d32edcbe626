// Package client signs and sends requests to the tracker REST API.
// A Client is built from one Credentials value, either BasicAuth or OAuth,
// and never changes mode afterwards; callers build a fresh Client when the
// active mode changes.
package client

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/panyam/tracktime/apierr"
)

const (
	basicHost = "example-tracker.net"
	apiPath   = "/rest/api/3"

	// OAuthGatewayURL is the tracker API gateway used with OAuth access tokens.
	OAuthGatewayURL = "https://api.example-tracker.com/ex/jira"
)

// Mode names the auth scheme a Credentials value signs with.
type Mode string

const (
	ModeBasic Mode = "basic"
	ModeOAuth Mode = "oauth"
)

// Credentials is either BasicAuth or OAuth.
type Credentials interface {
	// Resolve returns the API base URL and Authorization header value, or a
	// configuration error when a required field is empty.
	Resolve() (baseURL, authHeader string, err error)
	Mode() Mode
	fmt.Stringer

	sealed()
}

// BasicAuth signs with a site username and API token.
type BasicAuth struct {
	Domain   string
	Username string
	APIToken string
}

func (BasicAuth) sealed() {}

func (b BasicAuth) Mode() Mode { return ModeBasic }

func (b BasicAuth) Resolve() (string, string, error) {
	var missing []string
	domain := normalizeDomain(b.Domain)
	if domain == "" {
		missing = append(missing, "domain")
	}
	if strings.TrimSpace(b.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(b.APIToken) == "" {
		missing = append(missing, "apiToken")
	}
	if len(missing) > 0 {
		return "", "", apierr.ConfigIncomplete("basic auth", missing...)
	}
	baseURL := fmt.Sprintf("https://%s.%s%s", domain, basicHost, apiPath)
	header := "Basic " + base64.StdEncoding.EncodeToString([]byte(b.Username+":"+b.APIToken))
	return baseURL, header, nil
}

func (b BasicAuth) String() string {
	return fmt.Sprintf("BasicAuth{Domain: %s, Username: %s, APIToken: %s}", b.Domain, b.Username, Redact(b.APIToken))
}

// OAuth signs with a bearer access token scoped to one site.
type OAuth struct {
	AccessToken string
	SiteID      string
}

func (OAuth) sealed() {}

func (o OAuth) Mode() Mode { return ModeOAuth }

func (o OAuth) Resolve() (string, string, error) {
	var missing []string
	if strings.TrimSpace(o.AccessToken) == "" {
		missing = append(missing, "accessToken")
	}
	if strings.TrimSpace(o.SiteID) == "" {
		missing = append(missing, "siteId")
	}
	if len(missing) > 0 {
		return "", "", apierr.ConfigIncomplete("oauth", missing...)
	}
	return OAuthGatewayURL + "/" + o.SiteID + apiPath, "Bearer " + o.AccessToken, nil
}

func (o OAuth) String() string {
	return fmt.Sprintf("OAuth{SiteID: %s, AccessToken: %s}", o.SiteID, Redact(o.AccessToken))
}

// normalizeDomain accepts "acme", "acme.example-tracker.net" or a full URL.
func normalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	d = strings.TrimSuffix(d, "."+basicHost)
	return d
}

// Redact returns a loggable form of a secret: the first 8 characters of long
// values, a mask for short ones.
func Redact(secret string) string {
	switch {
	case secret == "":
		return "<empty>"
	case len(secret) <= 12:
		return "****"
	default:
		return secret[:8] + "..."
	}
}
