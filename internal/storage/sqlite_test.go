package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage(t *testing.T) {
	runStorageTests(t, func(t *testing.T) Storage {
		store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.CreateNode(ctx, testNode("a", 0, 1), nil))
	n, err := store.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteStorage_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "syntra.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateNode(ctx, testNode("a", 0, 1, 0), nil))
	require.NoError(t, store.CreateNode(ctx, testNode("b", 1, 1, 0), []*models.Connection{testConn("ba", "b", "a", 0.9)}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.Path())

	snap, err := reopened.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Connections, 1)

	size, err := DiskUsageBytes(DatabaseFiles(path)...)
	require.NoError(t, err)
	assert.Positive(t, size)
}
