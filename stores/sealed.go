// Package stores holds helpers shared by the SettingsStore backends and the
// Sealed decorator that encrypts secret settings at rest. Backends live in
// the fs, gorm, gae and keyring subpackages.
package stores

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	tt "github.com/panyam/tracktime"
)

const sealedPrefix = "sealed:v1:"

// ErrSealedValue is returned when a sealed value cannot be opened, usually
// because the key changed.
var ErrSealedValue = errors.New("sealed setting could not be decrypted")

// Key is a secretbox key.
type Key [32]byte

// KeyFromString accepts a base64 encoded 32 byte key, or derives one from a
// passphrase with SHA-256.
func KeyFromString(s string) Key {
	var k Key
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == len(k) {
		copy(k[:], raw)
		return k
	}
	return Key(sha256.Sum256([]byte(s)))
}

// Sealed encrypts the values of secret keys before they reach the wrapped
// store and decrypts them on the way out. Other keys pass through. Values
// stored before sealing was enabled are returned as is.
type Sealed struct {
	store  tt.SettingsStore
	key    Key
	secret map[string]bool
}

// NewSealed wraps store. With no keys given, tt.SecretKeys are sealed.
func NewSealed(store tt.SettingsStore, key Key, keys ...string) *Sealed {
	if len(keys) == 0 {
		keys = tt.SecretKeys
	}
	secret := make(map[string]bool, len(keys))
	for _, k := range keys {
		secret[k] = true
	}
	return &Sealed{store: store, key: key, secret: secret}
}

func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	if !strings.HasPrefix(v, sealedPrefix) {
		return v, true, nil
	}
	plain, err := s.open(v)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", key, err)
	}
	return plain, true, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) (*tt.Setting, error) {
	stored := value
	if s.secret[key] && value != "" {
		var err error
		if stored, err = s.seal(value); err != nil {
			return nil, err
		}
	}
	rec, err := s.store.Set(ctx, key, stored)
	if err != nil {
		return nil, err
	}
	out := *rec
	out.Value = value
	return &out, nil
}

func (s *Sealed) Delete(ctx context.Context, key string) (bool, error) {
	return s.store.Delete(ctx, key)
}

func (s *Sealed) seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	k := [32]byte(s.key)
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &k)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

func (s *Sealed) open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return "", ErrSealedValue
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	k := [32]byte(s.key)
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &k)
	if !ok {
		return "", ErrSealedValue
	}
	return string(plain), nil
}
