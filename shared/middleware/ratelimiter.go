package middleware

import (
	"errors"
	"net/http"

	"github.com/staffhub/staffhub/shared/logger"
	"github.com/staffhub/staffhub/shared/middleware/ratelimiter"
)

// RateLimit rejects requests once the bucket of the request's key is empty.
// A nil limiter disables limiting.
func RateLimit(rl *ratelimiter.Limiter, getKey func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := getKey(r)
			if err != nil {
				logger.Log.Error("rate limit key unavailable", "component", "ratelimit", "error", err)
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if !rl.Allow(key) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerRateKey keys the limiter by the authenticated identity. Only valid
// behind Auth middleware.
func CallerRateKey(r *http.Request) (string, error) {
	caller, ok := GetCallerFromContext(r)
	if !ok {
		return "", errors.New("no caller in context")
	}
	return "caller:" + caller.String(), nil
}
