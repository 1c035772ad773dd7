package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"habitquest-api/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	store := quota.NewMemoryStore()
	defer store.Close()

	handler := NewPublicRateLimiter(store, 3, time.Minute).RateLimit(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:51234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	store := quota.NewMemoryStore()
	defer store.Close()

	handler := NewPublicRateLimiter(store, 2, time.Minute).RateLimit(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	assert.Contains(t, rec.Body.String(), "Try again in")
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	store := quota.NewMemoryStore()
	defer store.Close()

	handler := NewPublicRateLimiter(store, 1, time.Minute).RateLimit(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.RemoteAddr = "10.0.0.1:51234"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	// A different client is unaffected by the first client's spend.
	second := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	second.RemoteAddr = "10.0.0.2:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code)

	repeat := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	repeat.RemoteAddr = "10.0.0.1:51234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, repeat)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitHonorsForwardedFor(t *testing.T) {
	store := quota.NewMemoryStore()
	defer store.Close()

	handler := NewPublicRateLimiter(store, 1, time.Minute).RateLimit(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// Same forwarded client behind a different proxy hop is still limited.
	req = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "127.0.0.2:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
