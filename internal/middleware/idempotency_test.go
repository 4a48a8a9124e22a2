package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewInMemIdempotencyStore()

	calls := 0
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextAccountKey, "alice")
	})
	r.Use(IdempotencyMiddleware(store))
	r.POST("/mint", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/mint", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := post("abc")
	second := post("abc")
	assert.Equal(t, 1, calls, "the handler must run once")
	assert.Equal(t, first.Body.String(), second.Body.String())

	// a different key runs the handler again
	post("def")
	assert.Equal(t, 2, calls)

	// no key disables the cache
	post("")
	post("")
	assert.Equal(t, 4, calls)
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewInMemIdempotencyStore()

	calls := 0
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextAccountKey, "alice")
	})
	r.Use(IdempotencyMiddleware(store))
	r.POST("/mint", func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transient"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/mint", nil)
		req.Header.Set(HeaderIdempotencyKey, "retry-me")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusInternalServerError, post().Code)
	// the retry reaches the handler and its success is then cached
	assert.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, 2, calls)
}
