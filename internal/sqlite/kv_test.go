package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpggio/promptkeeper/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestKVStore_GetMissing(t *testing.T) {
	db := NewTestDB(t)
	store := NewKVStore(db, 0)

	entry, err := store.Get(context.Background(), "prompts")
	require.NoError(t, err)
	require.False(t, entry.Exists())
	require.Equal(t, int64(0), entry.Revision)
	require.Equal(t, "prompts", entry.Key)
}

func TestKVStore_CompareAndSwap(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewKVStore(db, 0)

	rev, err := store.CompareAndSwap(ctx, "prompts", []byte(`[]`), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), rev)

	rev, err = store.CompareAndSwap(ctx, "prompts", []byte(`[{"id":"1"}]`), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), rev)

	entry, err := store.Get(ctx, "prompts")
	require.NoError(t, err)
	require.Equal(t, int64(2), entry.Revision)
	require.JSONEq(t, `[{"id":"1"}]`, string(entry.Value))
}

func TestKVStore_CompareAndSwapConflict(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewKVStore(db, 0)

	_, err := store.CompareAndSwap(ctx, "prompts", []byte(`[]`), 0)
	require.NoError(t, err)

	// Second insert of a fresh key loses.
	_, err = store.CompareAndSwap(ctx, "prompts", []byte(`[]`), 0)
	require.ErrorIs(t, err, repository.ErrConflict)

	// Stale revision loses.
	_, err = store.CompareAndSwap(ctx, "prompts", []byte(`[]`), 1)
	require.NoError(t, err)
	_, err = store.CompareAndSwap(ctx, "prompts", []byte(`["stale"]`), 1)
	require.ErrorIs(t, err, repository.ErrConflict)

	entry, err := store.Get(ctx, "prompts")
	require.NoError(t, err)
	require.Equal(t, "[]", string(entry.Value))
}

func TestKVStore_CompareAndSwapInvalid(t *testing.T) {
	db := NewTestDB(t)
	store := NewKVStore(db, 0)

	_, err := store.CompareAndSwap(context.Background(), "", []byte(`[]`), 0)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestKVStore_WatchLocalCommit(t *testing.T) {
	db := NewTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewKVStore(db, time.Hour)

	changes, err := store.Watch(ctx, "prompts")
	require.NoError(t, err)

	_, err = store.CompareAndSwap(ctx, "prompts", []byte(`["a"]`), 0)
	require.NoError(t, err)

	select {
	case change := <-changes:
		require.Equal(t, "prompts", change.Key)
		require.Equal(t, int64(1), change.Revision)
		require.Equal(t, `["a"]`, string(change.Value))
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKVStore_WatchOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.db")

	writerDB, err := New(path)
	require.NoError(t, err)
	require.NoError(t, writerDB.RunMigrations())
	t.Cleanup(func() { writerDB.Close() })

	watcherDB, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { watcherDB.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := NewKVStore(watcherDB, 20*time.Millisecond)
	changes, err := watcher.Watch(ctx, "prompts")
	require.NoError(t, err)

	writer := NewKVStore(writerDB, 0)
	_, err = writer.CompareAndSwap(ctx, "prompts", []byte(`["b"]`), 0)
	require.NoError(t, err)

	select {
	case change := <-changes:
		require.Equal(t, int64(1), change.Revision)
		require.Equal(t, `["b"]`, string(change.Value))
	case <-time.After(2 * time.Second):
		t.Fatal("expected change from second connection")
	}
}
