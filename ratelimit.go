package ucp

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// newRateLimitMiddleware rejects requests above the configured rate with the
// standard rate_limit_exceeded envelope.
func newRateLimitMiddleware(limiter *rate.Limiter) Middleware {
	if limiter == nil {
		return nil
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSONError(w, NewRateLimitExceededError("request rate exceeded", WithRetryAfter(time.Second)))
				return
			}
			next(w, r)
		}
	}
}
