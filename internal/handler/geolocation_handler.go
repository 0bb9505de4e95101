package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GeolocationHandler handles location preview requests.
type GeolocationHandler struct {
	geo Resolver
}

// NewGeolocationHandler creates a new GeolocationHandler instance.
func NewGeolocationHandler(geo Resolver) *GeolocationHandler {
	return &GeolocationHandler{geo: geo}
}

// GetGeolocation resolves the caller's approximate location, the same way a
// discovery run without an explicit location would.
func (h *GeolocationHandler) GetGeolocation(c *gin.Context) {
	c.JSON(http.StatusOK, h.geo.Resolve(c.Request.Context(), getClientIP(c)))
}
