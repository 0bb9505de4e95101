package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
}

func newTestRouter(keys []string) *gin.Engine {
	router := gin.New()
	router.Use(NewAPIKeyAuth(keys).Middleware())
	router.GET("/guarded", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestNewAPIKeyAuth(t *testing.T) {
	t.Parallel()

	t.Run("creates auth with valid keys", func(t *testing.T) {
		t.Parallel()

		auth := NewAPIKeyAuth([]string{"key1", "key2", "key3"})

		require.NotNil(t, auth)
		assert.Len(t, auth.apiKeys, 3)
		assert.True(t, auth.apiKeys["key1"])
	})

	t.Run("filters out empty keys", func(t *testing.T) {
		t.Parallel()

		auth := NewAPIKeyAuth([]string{"key1", "", "key2", ""})

		require.NotNil(t, auth)
		assert.Len(t, auth.apiKeys, 2)
	})
}

func TestMiddlewareNoKeysConfiguredIsPassThrough(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/guarded", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	router := newTestRouter([]string{"secret"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/guarded", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareAcceptsAPIKeyHeader(t *testing.T) {
	router := newTestRouter([]string{"secret"})

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	router := newTestRouter([]string{"secret"})

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejectsWrongKey(t *testing.T) {
	router := newTestRouter([]string{"secret"})

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
