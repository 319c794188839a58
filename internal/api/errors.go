package api

import "errors"

// Operational error kinds surfaced by the auth workflow. Handlers map these
// to HTTP status codes; anything not in this taxonomy is treated as an
// internal failure and never detailed to the client in production mode.
var (
	// ErrValidation marks malformed input the caller can correct and retry.
	ErrValidation = errors.New("invalid input")

	// ErrConflict marks a username/email uniqueness violation.
	ErrConflict = errors.New("item already exists or conflict")

	// ErrNotFound is returned only where revealing existence is an accepted
	// tradeoff (forgot-password and OTP issuance).
	ErrNotFound = errors.New("requested item not found")

	// ErrInvalidCredentials is deliberately identical for an unknown email
	// and a wrong password to resist account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrCodeInvalidOrExpired covers every verification/OTP failure without
	// distinguishing which check failed.
	ErrCodeInvalidOrExpired = errors.New("code is invalid or has expired")

	// ErrEmailNotVerified blocks login until the address is confirmed.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrNotification marks a failed outbound email send.
	ErrNotification = errors.New("failed to send notification email")

	// ErrUnauthenticated marks a missing, invalid, expired or stale token.
	ErrUnauthenticated = errors.New("authentication required or invalid token")
)
