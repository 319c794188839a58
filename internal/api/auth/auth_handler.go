package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/go-user-auth/config"
	"github.com/FACorreiaa/go-user-auth/internal/api"
)

// AuthHandler adapts the workflow to HTTP: body decoding, status-code
// mapping and cookie mechanics live here, never in the service.
type AuthHandler struct {
	svc    AuthService
	logger *slog.Logger
	mode   string
	jwtCfg config.JWTConfig
}

func NewAuthHandler(svc AuthService, cfg config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
		mode:   cfg.Mode,
		jwtCfg: cfg.JWT,
	}
}

// respondError maps the operational error taxonomy onto HTTP status codes.
// Unknown errors are logged and reported generically; in development mode
// the full detail is included instead.
func (h *AuthHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, api.ErrValidation), errors.Is(err, api.ErrConflict), errors.Is(err, api.ErrCodeInvalidOrExpired):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrInvalidCredentials), errors.Is(err, api.ErrEmailNotVerified), errors.Is(err, api.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, api.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, api.ErrNotification):
		status = http.StatusInternalServerError
	default:
		h.logger.ErrorContext(r.Context(), "Unexpected error", slog.Any("error", err))
		status = http.StatusInternalServerError
		if h.mode != "development" {
			api.ErrorResponse(w, r, status, "Something went wrong")
			return
		}
	}

	msg := err.Error()
	if h.mode != "development" {
		// Production posture: only the stable kind message, no wrapped detail.
		for _, kind := range []error{
			api.ErrValidation, api.ErrConflict, api.ErrCodeInvalidOrExpired,
			api.ErrInvalidCredentials, api.ErrEmailNotVerified, api.ErrUnauthenticated,
			api.ErrNotFound, api.ErrNotification,
		} {
			if errors.Is(err, kind) {
				msg = kind.Error()
				break
			}
		}
	}
	api.ErrorResponse(w, r, status, msg)
}

// setTokenCookies mirrors the JSON token payload into httpOnly cookies so
// browser clients need no token storage of their own.
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair *TokenPair) {
	expires := time.Now().Add(h.jwtCfg.CookieTTL)
	secure := h.mode != "development"
	http.SetCookie(w, &http.Cookie{
		Name: "jwt", Value: pair.AccessToken,
		Expires: expires, HttpOnly: true, Secure: secure, Path: "/",
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refreshToken", Value: pair.RefreshToken,
		Expires: expires, HttpOnly: true, Secure: secure, Path: "/",
	})
}

// sendTokens writes the logged-in success response used by every flow that
// ends with fresh tokens.
func (h *AuthHandler) sendTokens(w http.ResponseWriter, r *http.Request, status int, pair *TokenPair, user *User) {
	h.setTokenCookies(w, pair)
	api.WriteJSONResponse(w, r, status, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.svc.SignUp(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.respondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, api.Response{
		Success: true,
		Message: "OTP sent to your email!",
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Email == "" || req.Code == "" {
		h.respondError(w, r, fmt.Errorf("%w: please provide email and verification code", api.ErrValidation))
		return
	}

	pair, user, err := h.svc.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.sendTokens(w, r, http.StatusOK, pair, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	pair, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.sendTokens(w, r, http.StatusOK, pair, user)
}

func (h *AuthHandler) RequestLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.svc.RequestLoginOTP(r.Context(), req.Email); err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "OTP sent to email!",
	})
}

func (h *AuthHandler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Email == "" || req.OTP == "" {
		h.respondError(w, r, fmt.Errorf("%w: please provide email and OTP", api.ErrValidation))
		return
	}

	pair, user, err := h.svc.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.sendTokens(w, r, http.StatusOK, pair, user)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "OTP sent to email!",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	pair, user, err := h.svc.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.sendTokens(w, r, http.StatusOK, pair, user)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		// Fall back to the refreshToken cookie for browser clients.
		if cookie, cookieErr := r.Cookie("refreshToken"); cookieErr == nil {
			req.RefreshToken = cookie.Value
		} else {
			h.respondError(w, r, err)
			return
		}
	}

	pair, err := h.svc.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.sendTokens(w, r, http.StatusOK, pair, nil)
}

// Logout is stateless: there is no server-side session to destroy, so it
// only instructs the browser to overwrite its token cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	expires := time.Now().Add(10 * time.Second)
	http.SetCookie(w, &http.Cookie{
		Name: "jwt", Value: "loggedout",
		Expires: expires, HttpOnly: true, Path: "/",
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refreshToken", Value: "loggedout",
		Expires: expires, HttpOnly: true, Path: "/",
	})
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true})
}

// Me returns the authenticated user resolved by the Authenticate middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}
