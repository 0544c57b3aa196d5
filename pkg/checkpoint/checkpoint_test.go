package checkpoint

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcphotos/pkg/logger"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRecordAndHas(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	has, err := l.Has(ctx, "123", 0)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, l.Record(ctx, Entry{
		PostID: "123",
		Index:  0,
		URL:    "https://cdn.test/a.jpg",
		Path:   "/photos/123_max.jpg",
		Title:  "Painting",
		Date:   "2024-03-01",
	}))

	has, err = l.Has(ctx, "123", 0)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = l.Has(ctx, "123", 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLedgerRecordUpserts(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	require.NoError(t, l.Record(ctx, Entry{PostID: "1", Index: 0, URL: "old", Path: "a"}))
	require.NoError(t, l.Record(ctx, Entry{PostID: "1", Index: 0, URL: "new", Path: "b"}))

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].URL)
	assert.Equal(t, "b", entries[0].Path)
}

func TestLedgerListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.Record(ctx, Entry{
			PostID:       id,
			URL:          "u",
			Path:         "p",
			DownloadedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := l.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].PostID)
	assert.Equal(t, "b", entries[1].PostID)
	assert.True(t, entries[0].DownloadedAt.Equal(base.Add(2*time.Minute)))

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLedgerPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	l, err := Open(ctx, path, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Entry{PostID: "9", Index: 2, URL: "u", Path: "p"}))
	require.NoError(t, l.Close())

	reopened, err := Open(ctx, path, logger.NewNopLogger())
	require.NoError(t, err)
	defer reopened.Close()

	has, err := reopened.Has(ctx, "9", 2)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, path, reopened.Path())
}

func TestDefaultPathHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME applies to linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tcphotos", "history.db"), path)
}
