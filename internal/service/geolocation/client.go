// Package geolocation resolves a client IP to an approximate location using
// an ip-api.com style endpoint. Resolution is best-effort: every failure
// path falls back to a configured default location so discovery never
// blocks on it.
package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// Client queries the geolocation endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	fallback   models.GeoLocation
}

// NewClient builds a resolver for the given endpoint. fallback is returned
// whenever resolution fails.
func NewClient(endpoint string, timeout time.Duration, fallback models.GeoLocation) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		fallback:   fallback,
	}
}

// apiResponse is the subset of the endpoint's JSON payload we consume.
type apiResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Country    string  `json:"country"`
}

// Resolve maps ip to a location. Loopback, private, and empty IPs are
// resolved through the server's egress address instead, which at least
// works for deployed environments.
func (c *Client) Resolve(ctx context.Context, ip string) models.GeoLocation {
	url := fmt.Sprintf("%s/?fields=status,message,lat,lon,city,regionName,country", c.endpoint)
	if routable(ip) {
		url = fmt.Sprintf("%s/%s?fields=status,message,lat,lon,city,regionName,country", c.endpoint, ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Log.Warn("failed to build geolocation request", zap.Error(err))
		return c.fallback
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Log.Warn("geolocation request failed, using default location", zap.Error(err))
		return c.fallback
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		logger.Log.Warn("failed to read geolocation response, using default location", zap.Error(err))
		return c.fallback
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Log.Warn("malformed geolocation response, using default location", zap.Error(err))
		return c.fallback
	}
	if payload.Status != "success" {
		logger.Log.Warn("geolocation lookup failed, using default location",
			zap.String("message", payload.Message),
		)
		return c.fallback
	}

	location := models.GeoLocation{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		City:      payload.City,
		Region:    payload.RegionName,
		Country:   payload.Country,
	}
	if !location.ValidCoordinates() {
		logger.Log.Warn("geolocation returned invalid coordinates, using default location",
			zap.Float64("lat", payload.Lat),
			zap.Float64("lon", payload.Lon),
		)
		return c.fallback
	}
	return location
}

// routable reports whether ip is worth sending to the endpoint.
func routable(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !parsed.IsLoopback() && !parsed.IsPrivate() && !parsed.IsUnspecified()
}
