package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

func newTestStore(t *testing.T) *LedgerStore {
	t.Helper()
	store, err := NewLedgerStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEntry(ctx, "run-1", "products",
		domain.BookmarkEntry{Hash: "h1", Success: true, ID: "7", ExternalID: "42"}))
	require.NoError(t, store.AppendEntry(ctx, "run-1", "products",
		domain.BookmarkEntry{Hash: "h2", Error: "boom"}))

	snap, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)

	entries := snap.Bookmarks["products"]
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Success)
	assert.Equal(t, "7", entries[0].ID)
	assert.Equal(t, "42", entries[0].ExternalID)
	assert.False(t, entries[1].Success)
	assert.Equal(t, "boom", entries[1].Error)
}

func TestEntriesKeepInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, hash := range []string{"a", "b", "c"} {
		require.NoError(t, store.AppendEntry(ctx, "run-1", "products", domain.BookmarkEntry{Hash: hash}))
	}

	snap, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	var got []string
	for _, e := range snap.Bookmarks["products"] {
		got = append(got, e.Hash)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSaveSummaryUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEntry(ctx, "run-1", "products", domain.BookmarkEntry{Hash: "h1"}))
	require.NoError(t, store.SaveSummary(ctx, "run-1",
		map[string]domain.StreamSummary{"products": {Success: 1}}))
	require.NoError(t, store.SaveSummary(ctx, "run-1",
		map[string]domain.StreamSummary{"products": {Success: 2, Updated: 1}}))

	snap, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Summary["products"].Success)
	assert.Equal(t, 1, snap.Summary["products"].Updated)
}

func TestLoadUnknownRun(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownRun)
}

func TestReopenSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")
	ctx := context.Background()

	store, err := NewLedgerStore(path)
	require.NoError(t, err)
	require.NoError(t, store.AppendEntry(ctx, "run-1", "products", domain.BookmarkEntry{Hash: "h1", Success: true}))
	require.NoError(t, store.Close())

	reopened, err := NewLedgerStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, snap.Bookmarks["products"], 1)
}
