package keyring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/stores"
)

func TestStore_Lifecycle(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	s := New("tracktime-test", nil)
	require.IsType(t, &Store{}, s)

	_, ok, err := s.Get(ctx, tt.KeyOAuthRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := s.Set(ctx, tt.KeyOAuthRefreshToken, "RT1")
	require.NoError(t, err)
	assert.Equal(t, "RT1", rec.Value)

	v, ok, err := s.Get(ctx, tt.KeyOAuthRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "RT1", v)

	existed, err := s.Delete(ctx, tt.KeyOAuthRefreshToken)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, tt.KeyOAuthRefreshToken)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestNew_FallsBackWhenUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	t.Cleanup(keyring.MockInit)

	fallback := stores.NewMemoryStore()
	assert.Same(t, fallback, New("tracktime-test", fallback))
}
