package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

const (
	currentFileName = "history.json"
	legacyFileName  = "excluded.json"
)

// legacyEntry is the pre-denormalization persisted record: identifier and
// status only, with the status stored under the old "reason" key.
type legacyEntry struct {
	ID        string             `json:"id"`
	Reason    models.WatchStatus `json:"reason"`
	Timestamp int64              `json:"timestamp"`
}

// FileStore is the default Store backend: a single JSON file updated with
// atomic, durable writes. A legacy-format file found on first load is
// migrated once and then deleted.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) currentPath() string { return filepath.Join(s.dir, currentFileName) }
func (s *FileStore) legacyPath() string  { return filepath.Join(s.dir, legacyFileName) }

// Load implements Store. The legacy-schema migration runs here, lazily, the
// first time the current-schema file is found absent while a legacy file
// exists.
func (s *FileStore) Load(ctx context.Context) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() []models.HistoryEntry {
	data, err := os.ReadFile(s.currentPath())
	if os.IsNotExist(err) {
		if migrated, ok := s.migrateLegacyLocked(); ok {
			return migrated
		}
		return nil
	}
	if err != nil {
		logger.Log.Warn("history file unreadable, treating as empty",
			zap.String("path", s.currentPath()),
			zap.Error(err),
		)
		return nil
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Log.Warn("history file malformed, treating as empty",
			zap.String("path", s.currentPath()),
			zap.Error(err),
		)
		return nil
	}
	return entries
}

// migrateLegacyLocked converts a legacy file into current-schema entries with
// empty title/channel fields, persists them, and deletes the legacy file.
// Returns ok=false when there is nothing to migrate.
func (s *FileStore) migrateLegacyLocked() ([]models.HistoryEntry, bool) {
	data, err := os.ReadFile(s.legacyPath())
	if err != nil {
		return nil, false
	}

	var legacy []legacyEntry
	if err := json.Unmarshal(data, &legacy); err != nil {
		logger.Log.Warn("legacy history file malformed, skipping migration",
			zap.String("path", s.legacyPath()),
			zap.Error(err),
		)
		return nil, false
	}

	entries := make([]models.HistoryEntry, 0, len(legacy))
	for _, le := range legacy {
		status := le.Reason
		if !status.Valid() {
			status = models.WatchStatusOffered
		}
		entries = append(entries, models.HistoryEntry{
			ID:        le.ID,
			Status:    status,
			Timestamp: le.Timestamp,
		})
	}

	if err := s.saveLocked(entries); err != nil {
		logger.Log.Warn("failed to persist migrated history", zap.Error(err))
		return entries, true
	}
	if err := os.Remove(s.legacyPath()); err != nil {
		logger.Log.Warn("failed to delete legacy history file",
			zap.String("path", s.legacyPath()),
			zap.Error(err),
		)
	}

	logger.Log.Info("migrated legacy history", zap.Int("entries", len(entries)))
	return entries, true
}

// RecordOrUpdate implements Store.
func (s *FileStore) RecordOrUpdate(ctx context.Context, video models.Video, status models.WatchStatus) {
	if !status.Valid() {
		logger.Log.Warn("ignoring unknown watch status",
			zap.String("videoId", video.ID),
			zap.String("status", string(status)),
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	entry := models.HistoryEntry{
		ID:           video.ID,
		Title:        video.Title,
		ChannelTitle: video.ChannelTitle,
		ChannelID:    video.ChannelID,
		Status:       status,
		Timestamp:    s.now().UnixMilli(),
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == video.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if err := s.saveLocked(entries); err != nil {
		logger.Log.Warn("failed to persist history entry",
			zap.String("videoId", video.ID),
			zap.Error(err),
		)
	}
}

// UpdateStatus implements Store.
func (s *FileStore) UpdateStatus(ctx context.Context, id string, status models.WatchStatus) {
	if !status.Valid() {
		logger.Log.Warn("ignoring unknown watch status",
			zap.String("videoId", id),
			zap.String("status", string(status)),
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		entries[i].Status = status
		entries[i].Timestamp = s.now().UnixMilli()
		if err := s.saveLocked(entries); err != nil {
			logger.Log.Warn("failed to persist status update",
				zap.String("videoId", id),
				zap.Error(err),
			)
		}
		return
	}
	// Unknown ID: no-op.
}

// ExcludedIDs implements Store.
func (s *FileStore) ExcludedIDs(ctx context.Context) map[string]struct{} {
	entries := s.Load(ctx)
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// Clear implements Store.
func (s *FileStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.currentPath(), s.legacyPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Log.Warn("failed to remove history file",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
}

// saveLocked writes the full collection atomically: temp file, fsync, rename.
func (s *FileStore) saveLocked(entries []models.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.currentPath())
	if err != nil {
		return fmt.Errorf("create pending history file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write history data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace history file: %w", err)
	}
	return nil
}
