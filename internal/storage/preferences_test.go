package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, ok, err := store.GetPreference(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetPreference(ctx, "theme", "dark"))
	require.NoError(t, store.SetPreference(ctx, "theme", "light"))

	value, ok, err := store.GetPreference(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", value)

	require.Error(t, store.SetPreference(ctx, "", "x"))
}

func TestWatchPreference(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	sub := store.WatchPreference(ctx, "hide_values")
	defer sub.Cancel()

	first := <-sub.Updates()
	require.NoError(t, first.Err)
	assert.Equal(t, "", first.Value)

	require.NoError(t, store.SetPreference(ctx, "hide_values", "true"))

	select {
	case next := <-sub.Updates():
		require.NoError(t, next.Err)
		assert.Equal(t, "true", next.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no update after set")
	}
}
