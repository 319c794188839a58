package auth

import (
	"time"
)

// User is the canonical credential record. Challenge hash/expiry pairs are
// nullable and present only while the matching challenge is outstanding.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsVerified   bool   `json:"is_verified"`

	EmailVerifyHash      *string    `json:"-"`
	EmailVerifyExpiresAt *time.Time `json:"-"`
	LoginOTPHash         *string    `json:"-"`
	LoginOTPExpiresAt    *time.Time `json:"-"`
	ResetOTPHash         *string    `json:"-"`
	ResetOTPExpiresAt    *time.Time `json:"-"`

	// PasswordChangedAt is nil until the first password mutation after
	// signup. Once set it only moves forward.
	PasswordChangedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChangedPasswordAfter reports whether the password was changed at or after
// the given token issue time. A true result makes the token stale: changing
// the password is the sole revocation mechanism for outstanding tokens.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return !u.PasswordChangedAt.Before(issuedAt)
}

// ChallengePurpose selects which hash/expiry field pair a one-time secret
// lives in. Each purpose maps explicitly to its own columns, so a code issued
// for one purpose can never satisfy another.
type ChallengePurpose int

const (
	ChallengeEmailVerify ChallengePurpose = iota
	ChallengeLoginOTP
	ChallengePasswordReset
)

// CodeDigits returns the size of the numeric code space for this purpose.
// Login OTPs are 4 digits, verification and reset codes are 6.
func (p ChallengePurpose) CodeDigits() int {
	if p == ChallengeLoginOTP {
		return 4
	}
	return 6
}

func (p ChallengePurpose) String() string {
	switch p {
	case ChallengeEmailVerify:
		return "email_verify"
	case ChallengeLoginOTP:
		return "login_otp"
	case ChallengePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// TokenPair is the result of a successful authentication step.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUpRequest represents the signup request body.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyEmailRequest carries the emailed 6-digit verification code.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestLoginOTPRequest asks for a 4-digit login OTP to be emailed.
type RequestLoginOTPRequest struct {
	Email string `json:"email"`
}

// VerifyLoginOTPRequest carries the emailed 4-digit login OTP.
type VerifyLoginOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ForgotPasswordRequest represents the forgot-password request body.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the reset OTP plus the replacement password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// RefreshRequest represents the token reissue request body. The refresh
// token may come from the body or the refreshToken cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the success payload for every flow that ends logged in.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
	Message      string `json:"message,omitempty"`
}
