package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-user-auth/internal/api"
)

// stubAuthService implements AuthService with only Authorize wired up.
type stubAuthService struct {
	AuthService
	authorize func(ctx context.Context, token string) (*User, error)
}

func (s *stubAuthService) Authorize(ctx context.Context, token string) (*User, error) {
	return s.authorize(ctx, token)
}

func TestAuthenticate(t *testing.T) {
	logger := slog.Default()
	user := &User{ID: "user123", Email: "test@example.com"}

	okService := &stubAuthService{authorize: func(ctx context.Context, token string) (*User, error) {
		if token == "valid-token" {
			return user, nil
		}
		return nil, api.ErrUnauthenticated
	}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "user123", got.ID)
		w.WriteHeader(http.StatusOK)
	})
	handler := Authenticate(logger, okService)(next)

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ValidBearerToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("CookieFallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: "valid-token"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MalformedAuthorizationHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "valid-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}
