package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/adapters/snapshot"
	"go.trai.ch/requery/internal/core/domain"
)

func sampleSnapshot() domain.CacheSnapshot {
	return domain.CacheSnapshot{
		SavedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Entries: []domain.SnapshotEntry{
			{
				Endpoint:     "getUser",
				ArgHash:      0xdeadbeef,
				Arg:          map[string]any{"id": "1"},
				Data:         map[string]any{"id": "1", "name": "Ada"},
				ProvidedTags: []domain.SnapshotTag{{Type: "User", ID: "1"}},
				FetchedAt:    time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
			},
			{
				Endpoint:  "listUsers",
				ArgHash:   42,
				Data:      []any{map[string]any{"id": "1"}},
				FetchedAt: time.Date(2026, 1, 2, 3, 1, 0, 0, time.UTC),
			},
		},
	}
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".requery", "snapshot.yaml")
	store := snapshot.NewStore(path)

	want := sampleSnapshot()
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, want.SavedAt.Equal(got.SavedAt))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "getUser", got.Entries[0].Endpoint)
	assert.Equal(t, uint64(0xdeadbeef), got.Entries[0].ArgHash)
	assert.Equal(t, map[string]any{"id": "1"}, got.Entries[0].Arg)
	assert.Equal(t, map[string]any{"id": "1", "name": "Ada"}, got.Entries[0].Data)
	assert.Equal(t, []domain.Tag{domain.NewTag("User", "1")}, got.Entries[0].Tags())
	assert.Empty(t, got.Entries[1].ProvidedTags)
}

func TestStore_LoadMissingIsNil(t *testing.T) {
	t.Parallel()

	store := snapshot.NewStore(filepath.Join(t.TempDir(), "snapshot.yaml"))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries: ["), domain.FilePerm))

	store := snapshot.NewStore(path)
	_, err := store.Load()
	require.ErrorContains(t, err, domain.ErrSnapshotUnmarshalFailed.Error())
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	store := snapshot.NewStore(path)

	require.NoError(t, store.Save(sampleSnapshot()))

	replacement := domain.CacheSnapshot{SavedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Save(replacement))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Entries)
	assert.True(t, replacement.SavedAt.Equal(got.SavedAt))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
