package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// PostgresStore is a Store backend on a shared database, for deployments
// where the history must outlive the server's local filesystem. The schema
// is applied by cmd/migrate; there is no legacy schema to migrate here.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore returns a store backed by the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) []models.HistoryEntry {
	query := `
		SELECT video_id, title, channel_title, channel_id, status, updated_at_ms
		FROM watch_history
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		logger.Log.Warn("failed to load history, treating as empty", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.ChannelTitle, &e.ChannelID, &e.Status, &e.Timestamp); err != nil {
			logger.Log.Warn("failed to scan history row", zap.Error(err))
			return nil
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		logger.Log.Warn("failed to read history rows, treating as empty", zap.Error(err))
		return nil
	}
	return entries
}

// RecordOrUpdate implements Store.
func (s *PostgresStore) RecordOrUpdate(ctx context.Context, video models.Video, status models.WatchStatus) {
	if !status.Valid() {
		logger.Log.Warn("ignoring unknown watch status",
			zap.String("videoId", video.ID),
			zap.String("status", string(status)),
		)
		return
	}

	query := `
		INSERT INTO watch_history (video_id, title, channel_title, channel_id, status, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id) DO UPDATE
		SET title = EXCLUDED.title,
		    channel_title = EXCLUDED.channel_title,
		    channel_id = EXCLUDED.channel_id,
		    status = EXCLUDED.status,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`
	_, err := s.db.Exec(ctx, query,
		video.ID, video.Title, video.ChannelTitle, video.ChannelID, status, s.now().UnixMilli(),
	)
	if err != nil {
		logger.Log.Warn("failed to persist history entry",
			zap.String("videoId", video.ID),
			zap.Error(err),
		)
	}
}

// UpdateStatus implements Store. Unknown IDs match zero rows, which keeps the
// no-op contract without a separate existence check.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.WatchStatus) {
	if !status.Valid() {
		logger.Log.Warn("ignoring unknown watch status",
			zap.String("videoId", id),
			zap.String("status", string(status)),
		)
		return
	}

	query := `
		UPDATE watch_history
		SET status = $2, updated_at_ms = $3
		WHERE video_id = $1
	`
	if _, err := s.db.Exec(ctx, query, id, status, s.now().UnixMilli()); err != nil {
		logger.Log.Warn("failed to persist status update",
			zap.String("videoId", id),
			zap.Error(err),
		)
	}
}

// ExcludedIDs implements Store.
func (s *PostgresStore) ExcludedIDs(ctx context.Context) map[string]struct{} {
	rows, err := s.db.Query(ctx, `SELECT video_id FROM watch_history`)
	if err != nil {
		logger.Log.Warn("failed to load excluded IDs, treating as empty", zap.Error(err))
		return map[string]struct{}{}
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.Log.Warn("failed to scan excluded ID", zap.Error(err))
			return map[string]struct{}{}
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		logger.Log.Warn("failed to read excluded IDs, treating as empty", zap.Error(err))
		return map[string]struct{}{}
	}
	return ids
}

// Clear implements Store.
func (s *PostgresStore) Clear(ctx context.Context) {
	if _, err := s.db.Exec(ctx, `DELETE FROM watch_history`); err != nil {
		logger.Log.Warn("failed to clear history", zap.Error(err))
	}
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*FileStore)(nil)
