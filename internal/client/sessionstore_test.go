package client

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solconta/internal/session"
)

func TestMemoryStore(t *testing.T) {
	store := &MemoryStore{}

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	s := &session.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: 100}
	require.NoError(t, store.Save(s))
	s.AccessToken = "mutated"

	got, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.AccessToken)

	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestViperStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	v.Set("api_url", "http://localhost:8080")

	store := NewViperStore(v)
	want := &session.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    1771545600,
		User:         session.User{ID: "user-1", Email: "ana@test.com", Provider: "email"},
	}
	require.NoError(t, store.Save(want))

	// A fresh viper instance sees what was written to disk.
	reread := viper.New()
	reread.SetConfigFile(path)
	require.NoError(t, reread.ReadInConfig())
	assert.Equal(t, "http://localhost:8080", reread.GetString("api_url"))

	got, err := NewViperStore(reread).Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)

	require.NoError(t, NewViperStore(reread).Clear())
	cleared := viper.New()
	cleared.SetConfigFile(path)
	require.NoError(t, cleared.ReadInConfig())

	got, err = NewViperStore(cleared).Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
