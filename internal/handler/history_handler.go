package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/geekdaily/escape-the-algo/internal/history"
	"github.com/geekdaily/escape-the-algo/internal/models"
)

// HistoryHandler handles watch-history HTTP requests.
type HistoryHandler struct {
	store history.Store
}

// NewHistoryHandler creates a new HistoryHandler instance.
func NewHistoryHandler(store history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// ListHistory returns all history entries, most recent first, with display
// links derived from each video ID.
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	entries := h.store.Load(c.Request.Context())

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})

	dtos := make([]models.HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, models.NewHistoryEntryDTO(e))
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": dtos,
		"count":   len(dtos),
	})
}

// ClearHistory removes every stored entry, current and legacy schema alike.
// Cleared videos become eligible for discovery again.
func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	h.store.Clear(c.Request.Context())
	c.Status(http.StatusNoContent)
}
