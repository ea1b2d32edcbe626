// Package keyring stores settings in the operating system keychain.
package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	tt "github.com/panyam/tracktime"
)

// DefaultService is the keychain service name settings are filed under.
const DefaultService = "tracktime"

// record is what is written to the keychain for one setting.
type record struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements tt.SettingsStore on the system keychain.
type Store struct {
	service string
}

// Available reports whether the keychain can be written to.
func Available(service string) bool {
	testKey := service + "::probe"
	if err := keyring.Set(service, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(service, testKey)
	return true
}

// New returns a keychain store, or fallback when the keychain is unavailable.
func New(service string, fallback tt.SettingsStore) tt.SettingsStore {
	if service == "" {
		service = DefaultService
	}
	if !Available(service) && fallback != nil {
		return fallback
	}
	return &Store{service: service}
}

func (s *Store) user(key string) string {
	return fmt.Sprintf("%s::%s", s.service, key)
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	data, err := keyring.Get(s.service, s.user(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return "", false, fmt.Errorf("invalid keyring entry %s: %w", key, err)
	}
	return rec.Value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string) (*tt.Setting, error) {
	rec := record{Value: value, UpdatedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := keyring.Set(s.service, s.user(key), string(data)); err != nil {
		return nil, fmt.Errorf("keyring set %s: %w", key, err)
	}
	return &tt.Setting{Key: key, Value: value, UpdatedAt: rec.UpdatedAt}, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	err := keyring.Delete(s.service, s.user(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return true, nil
}
