//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	tt "github.com/panyam/tracktime"
)

func newTestStore(t *testing.T) *SettingsStore {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return NewSettingsStore(db)
}

func TestSettingsStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	v, ok, err := s.Get(context.Background(), tt.KeySiteID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSettingsStore_SetAndReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.Set(ctx, tt.KeyOAuthAccessToken, "AT1")
	require.NoError(t, err)
	assert.Equal(t, "AT1", rec.Value)
	first := rec.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	rec, err = s.Set(ctx, tt.KeyOAuthAccessToken, "AT2")
	require.NoError(t, err)
	assert.Equal(t, "AT2", rec.Value)
	assert.False(t, rec.UpdatedAt.Before(first))

	v, ok, err := s.Get(ctx, tt.KeyOAuthAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AT2", v)
}

func TestSettingsStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Set(ctx, tt.KeySiteName, "Acme")
	existed, err := s.Delete(ctx, tt.KeySiteName)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(ctx, tt.KeySiteName)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestSettingsStore_EmptyKeyMatchesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Set(ctx, tt.KeyOAuthAccessToken, "AT-secret")
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	existed, err := s.Delete(ctx, "")
	require.NoError(t, err)
	assert.False(t, existed)

	v, ok, err = s.Get(ctx, tt.KeyOAuthAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AT-secret", v)
}
