//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"

	tt "github.com/panyam/tracktime"
)

// SettingsStore implements tt.SettingsStore using Google Cloud Datastore
type SettingsStore struct {
	client    *datastore.Client
	namespace string
}

// NewSettingsStore creates a new Datastore-backed SettingsStore
func NewSettingsStore(client *datastore.Client, namespace string) *SettingsStore {
	return &SettingsStore{client: client, namespace: namespace}
}

func (s *SettingsStore) namespacedKey(name string) *datastore.Key {
	key := datastore.NameKey(KindSetting, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entity SettingEntity
	if err := s.client.Get(ctx, s.namespacedKey(key), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return "", false, nil
		}
		return "", false, err
	}
	return entity.Value, true, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) (*tt.Setting, error) {
	dsKey := s.namespacedKey(key)
	var saved SettingEntity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		now := time.Now().UTC()
		var existing SettingEntity
		createdAt := now
		if err := tx.Get(dsKey, &existing); err == nil {
			createdAt = existing.CreatedAt
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		saved = SettingEntity{Key: dsKey, Value: value, CreatedAt: createdAt, UpdatedAt: now}
		_, err := tx.Put(dsKey, &saved)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tt.Setting{Key: key, Value: saved.Value, UpdatedAt: saved.UpdatedAt}, nil
}

// Delete reads and deletes in one transaction so it can report whether the
// key existed; Datastore deletes of missing keys succeed silently.
func (s *SettingsStore) Delete(ctx context.Context, key string) (bool, error) {
	dsKey := s.namespacedKey(key)
	existed := false
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity SettingEntity
		if err := tx.Get(dsKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				existed = false
				return nil
			}
			return err
		}
		existed = true
		return tx.Delete(dsKey)
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}
