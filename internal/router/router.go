package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/go-user-auth/config"
	"github.com/FACorreiaa/go-user-auth/internal/api/auth"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	AuthHandler            *auth.AuthHandler
	AuthenticateMiddleware func(http.Handler) http.Handler
	Server                 config.Config
}

// SetupRouter wires the API routes. Server-wide middleware (request ID,
// logger, recoverer) is applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Fixed per-IP request cap; the core imposes no rate limiting of its own.
	if cfg.Server.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.Server.RateLimit, cfg.Server.Server.RateLimitWindow))
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Public routes.
		r.Group(func(r chi.Router) {
			r.Post("/signup", cfg.AuthHandler.SignUp)
			r.Post("/verify-email", cfg.AuthHandler.VerifyEmail)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/login-otp", cfg.AuthHandler.RequestLoginOTP)
			r.Post("/verify-otp", cfg.AuthHandler.VerifyLoginOTP)
			r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Patch("/reset-password", cfg.AuthHandler.ResetPassword)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			r.Get("/logout", cfg.AuthHandler.Logout)
		})

		// Protected routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Get("/me", cfg.AuthHandler.Me)
		})
	})

	return r
}
