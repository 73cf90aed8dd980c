package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"cropscan-gateway/internal/metrics"
	"cropscan-gateway/internal/ratelimit"
	"cropscan-gateway/pkg/logging/logging"
)

// RateLimit gates requests before any pipeline work runs. The client key
// is the X-Client-ID header when the frontend supplies one, otherwise the
// remote address (chi's RealIP runs earlier in the chain).
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get("X-Client-ID")
			if clientKey == "" {
				clientKey = r.RemoteAddr
			}

			decision := limiter.Admit(clientKey)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimitedTotal.Inc()

			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			logging.L(r.Context()).Warn("rate limited",
				zap.String("client_key", clientKey),
				zap.Int("retry_after_seconds", retryAfter),
			)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":               "rate_limited",
				"message":             "too many requests, please slow down and try again",
				"retry_after_seconds": retryAfter,
			})
		})
	}
}
