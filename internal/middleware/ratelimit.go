package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"habitquest-api/internal/quota"
)

// PublicRateLimiter guards anonymous endpoints with the per-instance
// in-memory store, keyed by client IP. Authenticated traffic goes through
// the persisted quota instead.
type PublicRateLimiter struct {
	store  *quota.MemoryStore
	limit  int
	window time.Duration
}

func NewPublicRateLimiter(store *quota.MemoryStore, limit int, window time.Duration) *PublicRateLimiter {
	return &PublicRateLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (rl *PublicRateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, _ := rl.store.Consume(r.Context(), clientIP(r), rl.limit, rl.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			wait := time.Until(decision.ResetAt).Round(time.Minute)
			if wait < time.Minute {
				wait = time.Minute
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":    "rate_limit_exceeded",
				"message":  "Too many requests. Try again in " + wait.String() + ".",
				"reset_at": decision.ResetAt,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
