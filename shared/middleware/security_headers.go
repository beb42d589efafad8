package middleware

import (
	"net/http"
)

// apiCSP forbids loading anything: responses are JSON only.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders adds the headers every API response carries.
// isHTTPS: if true, adds Strict-Transport-Security header
func SecurityHeaders(isHTTPS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()

			headers.Set("X-Frame-Options", "DENY")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Content-Security-Policy", apiCSP)

			// moderation data is personal, never cache it
			headers.Set("Cache-Control", "no-store")

			if isHTTPS {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
