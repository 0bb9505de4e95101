// Package history persists the durable record of every video ever offered or
// played. The store is deliberately fail-soft: history is an enhancement, not
// correctness-critical state, so unreadable or unwritable storage degrades to
// an empty store and is logged rather than surfaced to callers.
package history

import (
	"context"

	"github.com/geekdaily/escape-the-algo/internal/models"
)

// Store is the durable append/update log of offered and played videos.
// At most one entry exists per video ID.
type Store interface {
	// Load returns all entries. No ordering is guaranteed; callers needing
	// recency order must sort by Timestamp themselves.
	Load(ctx context.Context) []models.HistoryEntry

	// RecordOrUpdate inserts an entry for the video or overwrites the
	// existing one, setting status and refreshing the timestamp.
	RecordOrUpdate(ctx context.Context, video models.Video, status models.WatchStatus)

	// UpdateStatus changes the status of an existing entry without touching
	// its denormalized title/channel fields. Unknown IDs are a no-op.
	UpdateStatus(ctx context.Context, id string, status models.WatchStatus)

	// ExcludedIDs returns the set of all stored video IDs.
	ExcludedIDs(ctx context.Context) map[string]struct{}

	// Clear removes all stored data, current and legacy schema alike.
	Clear(ctx context.Context)
}
