package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
)

func TestBackups_CreateListDelete(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	seedAccount(t, store, "bank", "100")
	seedCategory(t, store, "food", "expense")

	backups, err := store.Backups()
	require.NoError(t, err)

	info, err := backups.Create(ctx, "before-cleanup", "manual")
	require.NoError(t, err)
	assert.Equal(t, "before-cleanup", info.ID)
	assert.Equal(t, 1, info.Accounts)
	assert.Equal(t, 1, info.Categories)
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.Auto)

	_, err = backups.Create(ctx, "before-cleanup", "again")
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	_, err = backups.Create(ctx, "../escape", "")
	require.ErrorIs(t, err, common.ErrValidation)

	list, err := backups.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "manual", list[0].Description)

	require.NoError(t, backups.Delete(ctx, "before-cleanup"))
	require.ErrorIs(t, backups.Delete(ctx, "before-cleanup"), common.ErrNotFound)

	list, err = backups.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBackups_AutoPrunes(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	backups, err := store.Backups()
	require.NoError(t, err)

	_, err = backups.Create(ctx, "keep-me", "")
	require.NoError(t, err)

	clock := testNow
	store.SetClock(func() time.Time { return clock })
	for range maxAutoBackups + 2 {
		clock = clock.Add(time.Minute)
		_, err := backups.Auto(ctx, "import")
		require.NoError(t, err)
	}

	list, err := backups.List(ctx)
	require.NoError(t, err)
	auto := 0
	for _, info := range list {
		if info.Auto {
			auto++
		}
	}
	assert.Equal(t, maxAutoBackups, auto)
	assert.Len(t, list, maxAutoBackups+1)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt), "newest first")
}

func TestRestoreBackup(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	path := store.Path()
	seedAccount(t, store, "bank", "100")

	backups, err := store.Backups()
	require.NoError(t, err)
	_, err = backups.Create(ctx, "one-account", "")
	require.NoError(t, err)

	seedAccount(t, store, "card", "0")
	require.NoError(t, store.Close())

	require.ErrorIs(t, RestoreBackup(path, "missing"), common.ErrNotFound)
	require.NoError(t, RestoreBackup(path, "one-account"))

	_, err = os.Stat(path + ".before-restore")
	require.NoError(t, err)

	restored, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()

	accounts, err := restored.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "bank", accounts[0].ID)
}
