// Package fs provides a JSON file backed SettingsStore.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/stores"
)

// FSSettingsStore keeps all settings in one JSON file. Every Set and Delete
// rewrites the file atomically.
type FSSettingsStore struct {
	mu       sync.RWMutex
	path     string
	settings map[string]tt.Setting
}

// settingsFile is the JSON structure stored on disk
type settingsFile struct {
	Settings map[string]tt.Setting `json:"settings"`
}

// DefaultPath returns ~/.config/<appName>/settings.json.
func DefaultPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	if appName == "" {
		appName = "tracktime"
	}
	return filepath.Join(configDir, appName, "settings.json"), nil
}

// NewFSSettingsStore opens the store at path, loading existing settings.
// If path is empty, DefaultPath("tracktime") is used.
func NewFSSettingsStore(path string) (*FSSettingsStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(""); err != nil {
			return nil, err
		}
	}

	s := &FSSettingsStore{
		path:     path,
		settings: make(map[string]tt.Setting),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file location.
func (s *FSSettingsStore) Path() string {
	return s.path
}

func (s *FSSettingsStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var file settingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", s.path, err)
	}
	for k, v := range file.Settings {
		v.Key = k
		s.settings[k] = v
	}
	return nil
}

// save writes all settings. Caller must hold s.mu.
func (s *FSSettingsStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(settingsFile{Settings: s.settings}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return stores.WriteAtomicFile(s.path, data)
}

func (s *FSSettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.settings[key]
	return rec.Value, ok, nil
}

func (s *FSSettingsStore) Set(_ context.Context, key, value string) (*tt.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.settings[key]
	rec := tt.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	s.settings[key] = rec
	if err := s.save(); err != nil {
		if existed {
			s.settings[key] = prev
		} else {
			delete(s.settings, key)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *FSSettingsStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.settings[key]
	if !ok {
		return false, nil
	}
	delete(s.settings, key)
	if err := s.save(); err != nil {
		s.settings[key] = prev
		return false, err
	}
	return true, nil
}
