package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-user-auth/config"
	"github.com/FACorreiaa/go-user-auth/internal/api"
	"github.com/FACorreiaa/go-user-auth/internal/api/auth"
)

// noopAuthService rejects every call; route-level tests only need the
// HTTP wiring, not workflow behavior.
type noopAuthService struct{}

func (noopAuthService) SignUp(context.Context, string, string, string) error {
	return api.ErrValidation
}
func (noopAuthService) VerifyEmail(context.Context, string, string) (*auth.TokenPair, *auth.User, error) {
	return nil, nil, api.ErrCodeInvalidOrExpired
}
func (noopAuthService) Login(context.Context, string, string) (*auth.TokenPair, *auth.User, error) {
	return nil, nil, api.ErrInvalidCredentials
}
func (noopAuthService) RequestLoginOTP(context.Context, string) error { return api.ErrNotFound }
func (noopAuthService) VerifyLoginOTP(context.Context, string, string) (*auth.TokenPair, *auth.User, error) {
	return nil, nil, api.ErrCodeInvalidOrExpired
}
func (noopAuthService) ForgotPassword(context.Context, string) error { return api.ErrNotFound }
func (noopAuthService) ResetPassword(context.Context, string, string, string) (*auth.TokenPair, *auth.User, error) {
	return nil, nil, api.ErrCodeInvalidOrExpired
}
func (noopAuthService) Authorize(context.Context, string) (*auth.User, error) {
	return nil, api.ErrUnauthenticated
}
func (noopAuthService) RefreshSession(context.Context, string) (*auth.TokenPair, error) {
	return nil, api.ErrUnauthenticated
}

func newTestRouter() http.Handler {
	logger := slog.Default()
	svc := noopAuthService{}

	cfg := config.Config{Mode: "development"}
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.JWT.CookieTTL = time.Hour

	return SetupRouter(&Config{
		AuthHandler:            auth.NewAuthHandler(svc, cfg, logger),
		AuthenticateMiddleware: auth.Authenticate(logger, svc),
		Server:                 cfg,
	})
}

func TestRouterWiring(t *testing.T) {
	r := newTestRouter()

	t.Run("Ping", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})

	t.Run("ProtectedRouteRequiresToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("LogoutIsPublic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/logout", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ResetPasswordIsPatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/reset-password", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
