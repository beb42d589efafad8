package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/staffhub/staffhub/shared/domain"
	"github.com/staffhub/staffhub/shared/errors"
	jwt_internal "github.com/staffhub/staffhub/shared/jwt"
	"github.com/staffhub/staffhub/shared/logger"
)

// SupervisorChecker answers the live role check for SupervisorOnly.
type SupervisorChecker interface {
	IsSupervisor(ctx context.Context, id domain.HashedEmail) (bool, error)
}

// Key to store the caller identity in the request context
type key int

const CallerKey key = 0

// Auth holds dependencies for authentication middleware
type Auth struct {
	jwtService    jwt_internal.JwtService
	checker       SupervisorChecker
	secureCookies bool
}

func NewAuth(jwtService jwt_internal.JwtService, checker SupervisorChecker, secureCookies bool) *Auth {
	return &Auth{
		jwtService:    jwtService,
		checker:       checker,
		secureCookies: secureCookies,
	}
}

// NeedAuth returns middleware that requires a valid token
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return a.auth(false)
}

// SupervisorOnly returns middleware that requires a valid token whose
// identity currently holds the supervisor role in the store
func (a *Auth) SupervisorOnly() func(http.Handler) http.Handler {
	return a.auth(true)
}

// extractCaller extracts and validates the caller identity from the JWT token
func (a *Auth) extractCaller(r *http.Request) (domain.HashedEmail, error) {
	// Try to get token from cookie first (for browser clients)
	var tokenString string
	accessCookie, err := r.Cookie("accessToken")
	if err == nil {
		tokenString = accessCookie.Value
	} else if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		// If no cookie, try Authorization header (for API clients)
		tokenString = token
	}

	if tokenString == "" {
		return "", errNoToken
	}

	token, err := a.jwtService.DecodeToken(tokenString)
	if err != nil {
		return "", err
	}

	id, err := jwt_internal.HashedEmail(token)
	if err != nil {
		logger.Log.Warn("invalid jwt claims", "component", "auth", "error", err)
		return "", errInvalidClaims
	}
	return id, nil
}

// Sentinel errors for extractCaller
var (
	errNoToken       = errorString("no token")
	errInvalidClaims = errorString("invalid claims")
)

type errorString string

func (e errorString) Error() string { return string(e) }

func (a *Auth) auth(supervisorOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := a.extractCaller(r)
			if err != nil {
				switch err {
				case errNoToken:
					http.Error(w, "Please sign-in", http.StatusUnauthorized)
				case errInvalidClaims:
					http.Error(w, "Invalid token", http.StatusUnauthorized)
				default:
					// Token decode error
					http.Error(w, err.Error(), http.StatusUnauthorized)
				}
				return
			}

			if supervisorOnly {
				ok, err := a.checker.IsSupervisor(r.Context(), caller)
				switch {
				case errors.IsNotFound(err):
					// The record is gone, the token is useless from now on
					a.clearCookie(w)
					http.Error(w, "Access denied. Unknown user", http.StatusForbidden)
					return
				case err != nil:
					logger.Log.Error("supervisor check failed", "component", "auth", "hashed_email", caller, "error", err)
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				case !ok:
					http.Error(w, "Access denied. Only for supervisors", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Auth) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetCallerFromContext retrieves the authenticated identity, if any
func GetCallerFromContext(r *http.Request) (domain.HashedEmail, bool) {
	caller, ok := r.Context().Value(CallerKey).(domain.HashedEmail)
	return caller, ok
}
