package api

import (
	"encoding/json/v2"
	"net/http"
	"time"

	"github.com/stashmark/stashmark-server/internal/ratelimit"
)

// NewAuthRateLimiter creates the rate limiter used for credential endpoints.
// rate is the number of requests allowed per interval.
func NewAuthRateLimiter(ratePerInterval int, interval time.Duration, burst int) *ratelimit.KeyedRateLimiter {
	rps := float64(ratePerInterval) / interval.Seconds()
	return ratelimit.New(rps, burst)
}

// rateLimitMiddleware limits requests by client IP on matching path
// prefixes. Returns 429 Too Many Requests when the limit is exceeded.
func (s *Server) rateLimitMiddleware(pathPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil || len(r.URL.Path) < len(pathPrefix) || r.URL.Path[:len(pathPrefix)] != pathPrefix {
				next.ServeHTTP(w, r)
				return
			}

			key := getClientIP(r)
			if !s.limiter.Allow(key) {
				if s.logger != nil {
					s.logger.Warn("Rate limit exceeded",
						"ip", key,
						"path", r.URL.Path,
					)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.MarshalWrite(w, APIEnvelope{
					Version: EnvelopeVersion,
					Success: false,
					Error:   "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
