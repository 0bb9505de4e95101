// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/internal/session"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// Resolver maps a client IP to the search origin used by a run.
type Resolver interface {
	Resolve(ctx context.Context, ip string) models.GeoLocation
}

// DiscoveryHandler handles discovery run HTTP requests.
type DiscoveryHandler struct {
	controller *session.Controller
	geo        Resolver
}

// NewDiscoveryHandler creates a new DiscoveryHandler instance.
func NewDiscoveryHandler(controller *session.Controller, geo Resolver) *DiscoveryHandler {
	return &DiscoveryHandler{
		controller: controller,
		geo:        geo,
	}
}

// StartDiscovery begins a new discovery run, superseding any run in flight.
// The optional body may carry an explicit location and extra exclusions.
func (h *DiscoveryHandler) StartDiscovery(c *gin.Context) {
	// The body is optional, and chunked requests report no content length,
	// so decode whatever is there and tolerate only the empty case.
	var req models.DiscoveryRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.Log.Warn("invalid discovery request payload",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:    http.StatusBadRequest,
				Error:     "Bad Request",
				Message:   "Invalid request payload: " + err.Error(),
				Timestamp: time.Now(),
				Path:      c.Request.URL.Path,
			})
			return
		}
	}

	loc, err := h.resolveLocation(c, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     "Bad Request",
			Message:   err.Error(),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	runID := h.controller.Start(loc, req.ExcludeIDs)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":   runID,
		"phase":    session.PhaseSearching,
		"location": loc,
	})
}

// GetState returns the current presentation state snapshot.
func (h *DiscoveryHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.State())
}

// WaitResult blocks until the named run reaches a terminal phase and returns
// its final state. Superseded runs report conflict rather than a result.
func (h *DiscoveryHandler) WaitResult(c *gin.Context) {
	runID, err := strconv.ParseUint(c.Param("run"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     "Bad Request",
			Message:   "Run identifier must be a positive integer",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	state, err := h.controller.Wait(c.Request.Context(), runID)
	switch {
	case errors.Is(err, session.ErrUnknownRun):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:    http.StatusNotFound,
			Error:     "Not Found",
			Message:   "Unknown discovery run",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	case errors.Is(err, session.ErrSuperseded):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:    http.StatusConflict,
			Error:     "Conflict",
			Message:   "Discovery run superseded by a newer run",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	case err != nil:
		c.JSON(http.StatusRequestTimeout, models.ErrorResponse{
			Status:    http.StatusRequestTimeout,
			Error:     "Request Timeout",
			Message:   "Client gave up waiting for the run result",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	default:
		c.JSON(http.StatusOK, state)
	}
}

// MarkPlayed promotes a video's history entry from offered to played, fired
// after sustained playback.
func (h *DiscoveryHandler) MarkPlayed(c *gin.Context) {
	videoID := strings.TrimSpace(c.Param("id"))
	if videoID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     "Bad Request",
			Message:   "Video ID is required",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.controller.MarkPlayed(c.Request.Context(), videoID)
	c.Status(http.StatusNoContent)
}

// resolveLocation prefers an explicit location from the request body over IP
// geolocation. Partial coordinates are rejected.
func (h *DiscoveryHandler) resolveLocation(c *gin.Context, req models.DiscoveryRequest) (models.GeoLocation, error) {
	if req.Latitude != nil || req.Longitude != nil {
		if req.Latitude == nil || req.Longitude == nil {
			return models.GeoLocation{}, errors.New("latitude and longitude must be provided together")
		}
		loc := models.GeoLocation{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if !loc.ValidCoordinates() {
			return models.GeoLocation{}, errors.New("coordinates out of range")
		}
		return loc, nil
	}
	return h.geo.Resolve(c.Request.Context(), getClientIP(c)), nil
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	return c.ClientIP()
}
