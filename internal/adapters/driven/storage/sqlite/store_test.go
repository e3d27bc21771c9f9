package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "data", "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func seedIblock(t *testing.T, live driven.LiveStore) int64 {
	t.Helper()
	ctx := context.Background()

	_, err := live.Insert(ctx, "b_iblock_type", driven.Row{"ID": "content", "NAME": "Content"})
	require.NoError(t, err)
	id, err := live.Insert(ctx, "b_iblock", driven.Row{
		"IBLOCK_TYPE_ID": "content",
		"XML_ID":         "news_block",
		"NAME":           "News",
	})
	require.NoError(t, err)
	return id.(int64)
}

func TestNewStore_RunsMigrationsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Close())

	// reopening must not re-run 001
	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	var versions int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestNewStore_InMemory(t *testing.T) {
	store, err := NewStore(MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	rows, err := store.LiveStore().Select(context.Background(), "b_iblock", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLiveStore_InsertSelect(t *testing.T) {
	ctx := context.Background()
	live := setupTestStore(t).LiveStore()
	iblockID := seedIblock(t, live)

	for i, code := range []string{"COLOR", "SIZE", "BRAND"} {
		_, err := live.Insert(ctx, "b_iblock_property", driven.Row{
			"IBLOCK_ID":     iblockID,
			"CODE":          code,
			"XML_ID":        code,
			"NAME":          code,
			"SORT":          100 * (i + 1),
			"PROPERTY_TYPE": "L",
		})
		require.NoError(t, err)
	}

	rows, err := live.Select(ctx, "b_iblock_property", driven.Row{"IBLOCK_ID": iblockID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "COLOR", rows[0].String("CODE"))
	n, ok := rows[2].Int64("SORT")
	assert.True(t, ok)
	assert.Equal(t, int64(300), n)

	rows, err = live.Select(ctx, "b_iblock_property", driven.Row{"CODE": []string{"SIZE", "BRAND"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = live.Select(ctx, "b_iblock_property", driven.Row{"CODE": []string{}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	// integer columns accept text filters
	rows, err = live.Select(ctx, "b_iblock", driven.Row{"ID": "1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "news_block", rows[0].String("XML_ID"))
}

func TestLiveStore_StringPrimaryKey(t *testing.T) {
	ctx := context.Background()
	live := setupTestStore(t).LiveStore()

	id, err := live.Insert(ctx, "b_iblock_type", driven.Row{"ID": "catalog", "SECTIONS": "Y"})
	require.NoError(t, err)
	assert.Equal(t, "catalog", id)

	rows, err := live.Select(ctx, "b_iblock_type", driven.Row{"ID": "catalog"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Y", rows[0].String("SECTIONS"))
}

func TestLiveStore_RejectsUnknownNames(t *testing.T) {
	ctx := context.Background()
	live := setupTestStore(t).LiveStore()

	_, err := live.Select(ctx, "b_nope", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = live.Select(ctx, "b_iblock; DROP TABLE b_iblock", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = live.Insert(ctx, "b_iblock_type", driven.Row{"ID": "x", "BOGUS": 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLiveStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	live := setupTestStore(t).LiveStore()
	iblockID := seedIblock(t, live)

	require.NoError(t, live.Update(ctx, "b_iblock", iblockID, driven.Row{"NAME": "Press", "ID": int64(99)}))
	rows, err := live.Select(ctx, "b_iblock", driven.Row{"ID": iblockID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Press", rows[0].String("NAME"))

	require.NoError(t, live.Update(ctx, "b_iblock", iblockID, driven.Row{}))
	assert.ErrorIs(t, live.Update(ctx, "b_iblock", int64(42), driven.Row{"NAME": "x"}), domain.ErrNotFound)
	assert.ErrorIs(t, live.Update(ctx, "b_iblock", int64(42), driven.Row{}), domain.ErrNotFound)

	// the type is still referenced by the iblock
	assert.Error(t, live.Delete(ctx, "b_iblock_type", "content"))

	require.NoError(t, live.Delete(ctx, "b_iblock", iblockID))
	assert.ErrorIs(t, live.Delete(ctx, "b_iblock", iblockID), domain.ErrNotFound)
	require.NoError(t, live.Delete(ctx, "b_iblock_type", "content"))
}

func TestLiveStore_Indexes(t *testing.T) {
	ctx := context.Background()
	live := setupTestStore(t).LiveStore()

	require.NoError(t, live.CreateIndex(ctx, "b_iblock_element", "ix_perf_b_iblock_element_1", []string{"IBLOCK_ID", "CODE"}))
	assert.Error(t, live.CreateIndex(ctx, "b_iblock_element", "ix_perf_b_iblock_element_1", []string{"CODE"}))
	assert.ErrorIs(t, live.CreateIndex(ctx, "b_iblock_element", "bad name", []string{"CODE"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, live.CreateIndex(ctx, "b_iblock_element", "ix_other", []string{"NOPE"}), domain.ErrInvalidInput)

	assert.ErrorIs(t, live.DropIndex(ctx, "b_iblock", "ix_perf_b_iblock_element_1"), domain.ErrNotFound)
	require.NoError(t, live.DropIndex(ctx, "b_iblock_element", "ix_perf_b_iblock_element_1"))
	assert.ErrorIs(t, live.DropIndex(ctx, "b_iblock_element", "ix_perf_b_iblock_element_1"), domain.ErrNotFound)
}
