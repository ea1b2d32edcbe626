// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFS      = "fs"
	StoreGorm    = "gorm"
	StoreGAE     = "gae"
	StoreKeyring = "keyring"
	StoreMemory  = "memory"
)

const callbackPath = "/oauth-callback"

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Endpoints overrides provider URLs. Empty fields keep the built-in defaults.
type Endpoints struct {
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	ResourcesURL string `yaml:"resources_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
	TrackerURL   string `yaml:"tracker_url"`
}

// Config holds the resolved configuration.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	PublicURL    string `yaml:"public_url"`
	RedirectURI  string `yaml:"redirect_uri"`
	SettingsPath string `yaml:"settings_path"`

	// Store settings. Location is a file path (fs), a DSN (gorm) or a
	// keychain service name (keyring).
	Store              string `yaml:"store"`
	StoreLocation      string `yaml:"store_location"`
	DatastoreProject   string `yaml:"datastore_project"`
	DatastoreNamespace string `yaml:"datastore_namespace"`

	EncryptionKey string `yaml:"encryption_key"`
	AdminSecret   string `yaml:"admin_secret"`

	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	SessionLifetime time.Duration `yaml:"session_lifetime"`

	Endpoints Endpoints `yaml:"endpoints"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]Source `yaml:"-"`
}

// Default returns the default configuration.
func Default() *Config {
	c := &Config{
		ListenAddr:      ":8080",
		PublicURL:       "http://localhost:8080",
		SettingsPath:    "/settings",
		Store:           StoreFS,
		HTTPTimeout:     30 * time.Second,
		SessionLifetime: time.Hour,
		Sources:         map[string]Source{},
	}
	for _, k := range []string{"listen_addr", "public_url", "settings_path", "store", "http_timeout", "session_lifetime"} {
		c.Sources[k] = SourceDefault
	}
	return c
}

// Load reads the YAML file at path (if non-empty), then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	for k := range raw {
		c.Sources[k] = SourceFile
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(env, key string, dst *string) {
		if v, ok := lookup(env); ok && v != "" {
			*dst = v
			c.Sources[key] = SourceEnv
		}
	}
	dur := func(env, key string, dst *time.Duration) error {
		v, ok := lookup(env)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", env, err)
		}
		*dst = d
		c.Sources[key] = SourceEnv
		return nil
	}

	str("TRACKTIME_LISTEN_ADDR", "listen_addr", &c.ListenAddr)
	str("TRACKTIME_PUBLIC_URL", "public_url", &c.PublicURL)
	str("TRACKTIME_REDIRECT_URI", "redirect_uri", &c.RedirectURI)
	str("OAUTH2_CALLBACK_URL", "redirect_uri", &c.RedirectURI)
	str("TRACKTIME_SETTINGS_PATH", "settings_path", &c.SettingsPath)
	str("TRACKTIME_STORE", "store", &c.Store)
	str("TRACKTIME_STORE_LOCATION", "store_location", &c.StoreLocation)
	str("TRACKTIME_DATASTORE_PROJECT", "datastore_project", &c.DatastoreProject)
	str("DATASTORE_PROJECT_ID", "datastore_project", &c.DatastoreProject)
	str("TRACKTIME_DATASTORE_NAMESPACE", "datastore_namespace", &c.DatastoreNamespace)
	str("TRACKTIME_ENCRYPTION_KEY", "encryption_key", &c.EncryptionKey)
	str("TRACKTIME_ADMIN_SECRET", "admin_secret", &c.AdminSecret)
	str("TRACKTIME_AUTH_URL", "endpoints", &c.Endpoints.AuthURL)
	str("TRACKTIME_TOKEN_URL", "endpoints", &c.Endpoints.TokenURL)
	str("TRACKTIME_RESOURCES_URL", "endpoints", &c.Endpoints.ResourcesURL)
	str("TRACKTIME_USERINFO_URL", "endpoints", &c.Endpoints.UserInfoURL)
	str("TRACKTIME_TRACKER_URL", "endpoints", &c.Endpoints.TrackerURL)

	if err := dur("TRACKTIME_HTTP_TIMEOUT", "http_timeout", &c.HTTPTimeout); err != nil {
		return err
	}
	return dur("TRACKTIME_SESSION_LIFETIME", "session_lifetime", &c.SessionLifetime)
}

// CallbackURL returns the OAuth redirect URI: the explicit override when set,
// otherwise the public URL plus the callback path.
func (c *Config) CallbackURL() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	return strings.TrimSuffix(c.PublicURL, "/") + callbackPath
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.CallbackURL())
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("config: redirect uri %q is not an absolute URL", c.CallbackURL())
	}
	switch c.Store {
	case StoreFS, StoreGorm, StoreKeyring, StoreMemory:
	case StoreGAE:
		if c.DatastoreProject == "" {
			return errors.New("config: store gae requires datastore_project")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: http_timeout must be positive")
	}
	if !strings.HasPrefix(c.SettingsPath, "/") {
		return fmt.Errorf("config: settings_path %q must start with /", c.SettingsPath)
	}
	return nil
}
