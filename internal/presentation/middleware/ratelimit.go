package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimiter limits requests per client IP. Rejections use the API error
// envelope.
func RateLimiter(requestsPerSecond int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerSecond,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "rate limit exceeded",
			})
		}),
	)
}
