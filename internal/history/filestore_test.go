package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

func init() {
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testVideo(id string) models.Video {
	return models.Video{
		ID:           id,
		Title:        "Title " + id,
		ChannelTitle: "Channel " + id,
		ChannelID:    "UC" + id,
		PublishedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreLoadEmpty(t *testing.T) {
	store := newTestStore(t)

	entries := store.Load(context.Background())
	assert.Empty(t, entries)
}

func TestFileStoreRecordOrUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusOffered)

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ID)
	assert.Equal(t, "Title abc", entries[0].Title)
	assert.Equal(t, "Channel abc", entries[0].ChannelTitle)
	assert.Equal(t, "UCabc", entries[0].ChannelID)
	assert.Equal(t, models.WatchStatusOffered, entries[0].Status)
	assert.NotZero(t, entries[0].Timestamp)
}

func TestFileStoreUpsertSingleEntry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusOffered)
	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusPlayed)

	entries := store.Load(ctx)
	require.Len(t, entries, 1, "re-recording must update in place, not append")
	assert.Equal(t, models.WatchStatusPlayed, entries[0].Status)
}

func TestFileStoreUpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusOffered)
	store.UpdateStatus(ctx, "abc", models.WatchStatusPlayed)

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.WatchStatusPlayed, entries[0].Status)
	assert.Equal(t, "Title abc", entries[0].Title, "UpdateStatus must not alter denormalized fields")
}

func TestFileStoreUpdateStatusUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.UpdateStatus(ctx, "missing", models.WatchStatusPlayed)

	assert.Empty(t, store.Load(ctx))
}

func TestFileStoreUpdateStatusRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusOffered)

	store.now = func() time.Time { return base.Add(10 * time.Second) }
	store.UpdateStatus(ctx, "abc", models.WatchStatusPlayed)

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, base.Add(10*time.Second).UnixMilli(), entries[0].Timestamp)
}

func TestFileStoreExcludedIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("a"), models.WatchStatusOffered)
	store.RecordOrUpdate(ctx, testVideo("b"), models.WatchStatusPlayed)

	ids := store.ExcludedIDs(ctx)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
}

func TestFileStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("a"), models.WatchStatusOffered)
	legacy := filepath.Join(store.dir, legacyFileName)
	require.NoError(t, os.WriteFile(legacy, []byte(`[]`), 0o600))

	store.Clear(ctx)

	assert.Empty(t, store.Load(ctx))
	_, err := os.Stat(legacy)
	assert.True(t, os.IsNotExist(err), "clear must remove legacy data too")
}

func TestFileStoreMigratesLegacyFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	legacy := []legacyEntry{{ID: "a", Reason: models.WatchStatusOffered, Timestamp: 100}}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, legacyFileName), data, 0o600))

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
	assert.Empty(t, entries[0].Title)
	assert.Empty(t, entries[0].ChannelTitle)
	assert.Equal(t, models.WatchStatusOffered, entries[0].Status)
	assert.Equal(t, int64(100), entries[0].Timestamp)

	// Legacy file is gone and the migrated data is under the current schema.
	_, err = os.Stat(filepath.Join(store.dir, legacyFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(store.dir, currentFileName))
	assert.NoError(t, err)

	// A second load sees only the current schema.
	entries = store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

func TestFileStoreMigrationSkippedWhenCurrentExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("current"), models.WatchStatusOffered)

	legacy := []legacyEntry{{ID: "old", Reason: models.WatchStatusPlayed, Timestamp: 50}}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, legacyFileName), data, 0o600))

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "current", entries[0].ID)
}

func TestFileStoreCorruptFileTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(store.dir, currentFileName), []byte("{not json"), 0o600))

	assert.Empty(t, store.Load(ctx))

	// Writes still work after degrading.
	store.RecordOrUpdate(ctx, testVideo("fresh"), models.WatchStatusOffered)
	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].ID)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	store.RecordOrUpdate(ctx, testVideo("persisted"), models.WatchStatusOffered)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	entries := reopened.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "persisted", entries[0].ID)
}

func TestFileStoreRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatus("archived"))
	assert.Empty(t, store.Load(ctx))

	store.RecordOrUpdate(ctx, testVideo("abc"), models.WatchStatusOffered)
	store.UpdateStatus(ctx, "abc", models.WatchStatus("archived"))

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.WatchStatusOffered, entries[0].Status)
}

func TestFileStoreMigrationNormalizesUnknownReason(t *testing.T) {
	store := newTestStore(t)

	legacy := []legacyEntry{
		{ID: "a", Reason: "excluded", Timestamp: 100},
		{ID: "b", Reason: models.WatchStatusPlayed, Timestamp: 200},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, legacyFileName), data, 0o600))

	entries := store.Load(context.Background())
	require.Len(t, entries, 2)
	assert.Equal(t, models.WatchStatusOffered, entries[0].Status)
	assert.Equal(t, models.WatchStatusPlayed, entries[1].Status)
}
