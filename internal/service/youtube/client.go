// Package youtube wraps the YouTube Data API v3 as the video-search
// provider for the discovery engine.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/geekdaily/escape-the-algo/internal/discovery"
	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// ProviderError is an explicit error payload returned by the provider. Its
// message is surfaced to the user verbatim and the run is not retried.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// TransportError is a network-level failure reaching the provider, surfaced
// with a generic message and recoverable by a user-initiated retry.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "failed to reach the video search provider"
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Client wraps the YouTube Data API v3 client.
type Client struct {
	service *ytapi.Service
}

// NewClient creates a new YouTube API client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	service, err := ytapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{service: service}, nil
}

// Search queries for embeddable videos recorded near the given location,
// most recent first. Excluded IDs are filtered from the response; the API
// itself has no exclusion parameter.
func (c *Client) Search(ctx context.Context, params models.SearchParameters) ([]models.Video, error) {
	call := c.service.Search.List([]string{"snippet"}).
		Type("video").
		Order("date").
		Location(fmt.Sprintf("%f,%f", params.Location.Latitude, params.Location.Longitude)).
		LocationRadius(discovery.FormatRadius(params.RadiusMiles)).
		MaxResults(int64(params.MaxResults)).
		VideoEmbeddable("true").
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return nil, classifyError(err)
	}

	videos := make([]models.Video, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		if _, seen := params.ExcludedIDs[item.Id.VideoId]; seen {
			continue
		}
		videos = append(videos, mapSearchItem(item))
	}

	logger.Log.Debug("provider search completed",
		zap.Int("radiusMiles", params.RadiusMiles),
		zap.Int("returned", len(response.Items)),
		zap.Int("eligible", len(videos)),
	)

	return videos, nil
}

// classifyError separates an explicit API error payload from a transport
// failure.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Message: apiErr.Message}
	}
	return &TransportError{Cause: err}
}

// mapSearchItem converts an API search result into our Video model.
func mapSearchItem(item *ytapi.SearchResult) models.Video {
	video := models.Video{ID: item.Id.VideoId}

	if item.Snippet == nil {
		return video
	}
	video.Title = item.Snippet.Title
	video.ChannelTitle = item.Snippet.ChannelTitle
	video.ChannelID = item.Snippet.ChannelId

	if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		video.PublishedAt = t
	}

	if thumbs := item.Snippet.Thumbnails; thumbs != nil {
		switch {
		case thumbs.High != nil:
			video.ThumbnailURL = thumbs.High.Url
		case thumbs.Default != nil:
			video.ThumbnailURL = thumbs.Default.Url
		}
	}

	return video
}

var _ discovery.Provider = (*Client)(nil)
