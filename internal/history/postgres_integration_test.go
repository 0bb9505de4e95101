//go:build integration
// +build integration

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/geekdaily/escape-the-algo/internal/models"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("watch_history_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok)
	migrationsPath := filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	_, _ = m.Close()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresStore(setupTestDatabase(t))

	video := models.Video{
		ID:           "pg1",
		Title:        "First",
		ChannelTitle: "Channel",
		ChannelID:    "UCpg",
	}

	store.RecordOrUpdate(ctx, video, models.WatchStatusOffered)
	store.RecordOrUpdate(ctx, video, models.WatchStatusPlayed)

	entries := store.Load(ctx)
	require.Len(t, entries, 1, "upsert must keep a single row per video ID")
	assert.Equal(t, "pg1", entries[0].ID)
	assert.Equal(t, models.WatchStatusPlayed, entries[0].Status)

	ids := store.ExcludedIDs(ctx)
	assert.Contains(t, ids, "pg1")

	store.UpdateStatus(ctx, "unknown", models.WatchStatusPlayed)
	assert.Len(t, store.Load(ctx), 1)

	store.Clear(ctx)
	assert.Empty(t, store.Load(ctx))
}
