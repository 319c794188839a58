package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/go-user-auth/internal/api"
)

type contextKey string

const userContextKey contextKey = "authUser"

// tokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the jwt cookie set by the login flows.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate is the protect gate for routes that require a logged-in user.
// It validates the access token through the service (signature, expiry,
// subject existence and the password-change staleness rule) and stores the
// resolved user in the request context.
func Authenticate(logger *slog.Logger, svc AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			token := tokenFromRequest(r)
			if token == "" {
				l.WarnContext(ctx, "Missing bearer token")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
				return
			}

			user, err := svc.Authorize(ctx, token)
			if err != nil {
				l.WarnContext(ctx, "Token authorization failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
				return
			}

			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user stored by the Authenticate middleware.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}
