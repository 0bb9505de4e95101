// Package models contains the data models and DTOs for the video discovery service.
package models

import "time"

// WatchStatus records how far a history entry got: offered to the viewer, or
// sustained-viewed.
type WatchStatus string

// WatchStatus constants define the lifecycle of a history entry.
const (
	WatchStatusOffered WatchStatus = "offered"
	WatchStatusPlayed  WatchStatus = "played"
)

// Valid reports whether s is a known watch status.
func (s WatchStatus) Valid() bool {
	return s == WatchStatusOffered || s == WatchStatusPlayed
}

// Video is a search result from the video provider. Immutable once fetched;
// only its HistoryEntry projection is persisted.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channel_title"`
	ChannelID    string    `json:"channel_id"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// HistoryEntry is the persisted record of a video that was offered or played.
// At most one entry exists per video ID; re-recording updates in place.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type HistoryEntry struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	ChannelTitle string      `json:"channel_title"`
	ChannelID    string      `json:"channel_id"`
	Status       WatchStatus `json:"status"`
	Timestamp    int64       `json:"timestamp"` // wall-clock milliseconds
}

// GeoLocation is a WGS84 point with optional display-only place names.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// ValidCoordinates reports whether the location is inside WGS84 ranges.
func (g GeoLocation) ValidCoordinates() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// SearchParameters describes one provider query. Constructed fresh per
// discovery step and never mutated afterwards.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type SearchParameters struct {
	Location    GeoLocation
	RadiusMiles int
	MaxResults  int
	ExcludedIDs map[string]struct{}
}

// DiscoveryRequest is the optional body of a discovery start request. When
// latitude and longitude are both present they override IP geolocation;
// ExcludeIDs are merged into the run's exclusion snapshot.
type DiscoveryRequest struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	ExcludeIDs []string `json:"exclude_ids"`
}

// ErrorResponse is the JSON error envelope for API failures.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// HistoryEntryDTO augments a HistoryEntry with display links derived from the
// video ID.
type HistoryEntryDTO struct {
	HistoryEntry
	WatchURL     string `json:"watch_url"`
	ChannelURL   string `json:"channel_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// NewHistoryEntryDTO derives the display links for an entry.
func NewHistoryEntryDTO(e HistoryEntry) HistoryEntryDTO {
	dto := HistoryEntryDTO{
		HistoryEntry: e,
		WatchURL:     "https://www.youtube.com/watch?v=" + e.ID,
		ThumbnailURL: "https://img.youtube.com/vi/" + e.ID + "/mqdefault.jpg",
	}
	if e.ChannelID != "" {
		dto.ChannelURL = "https://www.youtube.com/channel/" + e.ChannelID
	}
	return dto
}
