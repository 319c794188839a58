package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-user-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-user-auth/config"
	"github.com/FACorreiaa/go-user-auth/internal/api"
)

// Mailer is the notification collaborator. The service only ever hands it
// plaintext codes; nothing about delivery mechanics leaks into the workflow.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AuthService drives the signup / verification / login / recovery state
// machine. Every operation returns either a success value or one of the
// api.Err* kinds.
type AuthService interface {
	// SignUp creates an unverified user and emails a 6-digit verification code.
	SignUp(ctx context.Context, username, email, password string) error

	// VerifyEmail consumes the verification code, marks the user verified and
	// logs them in.
	VerifyEmail(ctx context.Context, email, code string) (*TokenPair, *User, error)

	// Login validates credentials and issues a token pair.
	Login(ctx context.Context, email, password string) (*TokenPair, *User, error)

	// RequestLoginOTP emails a 4-digit one-time login code.
	RequestLoginOTP(ctx context.Context, email string) error

	// VerifyLoginOTP consumes the login OTP and issues a token pair.
	VerifyLoginOTP(ctx context.Context, email, otp string) (*TokenPair, *User, error)

	// ForgotPassword emails a 6-digit password reset OTP.
	ForgotPassword(ctx context.Context, email string) error

	// ResetPassword consumes the reset OTP, replaces the password and logs
	// the user in with fresh tokens.
	ResetPassword(ctx context.Context, email, otp, newPassword string) (*TokenPair, *User, error)

	// Authorize validates an access token and returns its owner. It rejects
	// tokens issued before the last password change.
	Authorize(ctx context.Context, token string) (*User, error)

	// RefreshSession reissues a token pair from a valid refresh token.
	RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error)
}

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthServiceImpl struct {
	logger  *slog.Logger
	repo    AuthRepo
	mailer  Mailer
	tokens  *TokenIssuer
	cfg     config.AuthConfig
	metrics *metrics.AppMetrics
	tracer  trace.Tracer

	// now is the injectable clock used for every expiry comparison.
	now func() time.Time
}

func NewAuthService(repo AuthRepo, mailer Mailer, tokens *TokenIssuer, cfg config.AuthConfig, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:  logger,
		repo:    repo,
		mailer:  mailer,
		tokens:  tokens,
		cfg:     cfg,
		metrics: metrics.Get(),
		tracer:  otel.Tracer("auth-service"),
		now:     time.Now,
	}
}

func validateSignup(username, email, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 20 {
		return fmt.Errorf("%w: username must be between 3 and 20 characters", api.ErrValidation)
	}
	if !emailRx.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("%w: please provide a valid email", api.ErrValidation)
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", api.ErrValidation)
	}
	return nil
}

func (s *AuthServiceImpl) issuePair(userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issueChallenge generates a numeric code for the purpose, stores its digest
// with the configured TTL and returns the plaintext for delivery.
func (s *AuthServiceImpl) issueChallenge(ctx context.Context, userID string, purpose ChallengePurpose) (string, error) {
	code, err := GenerateNumericCode(purpose.CodeDigits())
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.cfg.CodeTTL)
	if err := s.repo.SetChallenge(ctx, userID, purpose, HashSecret(code), expiresAt); err != nil {
		return "", err
	}
	return code, nil
}

// deliverOrClear sends the challenge email; if delivery fails, the freshly
// written challenge fields are cleared so no unreachable code stays live.
func (s *AuthServiceImpl) deliverOrClear(ctx context.Context, user *User, purpose ChallengePurpose, subject, body string) error {
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send challenge email",
			slog.String("purpose", purpose.String()),
			slog.Any("error", err))
		if clearErr := s.repo.ClearChallenge(ctx, user.ID, purpose); clearErr != nil {
			s.logger.ErrorContext(ctx, "Failed to clear challenge after send failure",
				slog.String("purpose", purpose.String()),
				slog.Any("error", clearErr))
		}
		return fmt.Errorf("%w: %v", api.ErrNotification, err)
	}
	return nil
}

func (s *AuthServiceImpl) SignUp(ctx context.Context, username, email, password string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	if err := validateSignup(username, email, password); err != nil {
		return err
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(username), email, hash)
	if err != nil {
		s.metrics.CountSignup(ctx, "failure")
		return err
	}

	code, err := s.issueChallenge(ctx, user.ID, ChallengeEmailVerify)
	if err != nil {
		s.metrics.CountSignup(ctx, "failure")
		return err
	}

	body := fmt.Sprintf(
		"Welcome to our app! Please verify your email using this %d-digit code: %s\n\nThis code will expire in %.0f minutes.",
		ChallengeEmailVerify.CodeDigits(), code, s.cfg.CodeTTL.Minutes())
	if err := s.deliverOrClear(ctx, user, ChallengeEmailVerify, "Email Verification Code", body); err != nil {
		// The account stays created; only the unreachable code is dropped.
		s.metrics.CountSignup(ctx, "notification_failure")
		return err
	}

	s.metrics.CountSignup(ctx, "success")
	s.logger.InfoContext(ctx, "User signed up, verification code sent",
		slog.String("user_id", user.ID))
	return nil
}

func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, email, code string) (*TokenPair, *User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyEmail")
	defer span.End()

	user, err := s.consume(ctx, email, ChallengeEmailVerify, code)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, nil, err
	}
	user.IsVerified = true

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "Email verified, user logged in", slog.String("user_id", user.ID))
	return pair, user, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*TokenPair, *User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: please provide email and password", api.ErrValidation)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			// Identical failure for unknown email and wrong password.
			s.metrics.CountLogin(ctx, "invalid_credentials")
			return nil, nil, api.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		s.metrics.CountLogin(ctx, "invalid_credentials")
		return nil, nil, api.ErrInvalidCredentials
	}

	if !user.IsVerified {
		s.metrics.CountLogin(ctx, "unverified")
		return nil, nil, fmt.Errorf("%w: please verify your email first", api.ErrEmailNotVerified)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.CountLogin(ctx, "success")
	return pair, user, nil
}

func (s *AuthServiceImpl) RequestLoginOTP(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.RequestLoginOTP")
	defer span.End()

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.issueChallenge(ctx, user.ID, ChallengeLoginOTP)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Your one-time login code is: %s\nIt expires in %.0f minutes. If you did not try to log in, you can ignore this email.",
		code, s.cfg.CodeTTL.Minutes())
	return s.deliverOrClear(ctx, user, ChallengeLoginOTP, "Your login OTP", body)
}

func (s *AuthServiceImpl) VerifyLoginOTP(ctx context.Context, email, otp string) (*TokenPair, *User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyLoginOTP")
	defer span.End()

	user, err := s.consume(ctx, email, ChallengeLoginOTP, otp)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.ForgotPassword")
	defer span.End()

	// This lookup deliberately reveals existence (404 for unknown email),
	// unlike login's uniform error.
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.issueChallenge(ctx, user.ID, ChallengePasswordReset)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password to /reset-password along with this %d-digit OTP: %s\nIf you didn't forget your password, please ignore this email!",
		ChallengePasswordReset.CodeDigits(), code)
	return s.deliverOrClear(ctx, user, ChallengePasswordReset, "Your password reset OTP (valid for 10 min)", body)
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, email, otp, newPassword string) (*TokenPair, *User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ResetPassword")
	defer span.End()

	if len(newPassword) < 8 {
		return nil, nil, fmt.Errorf("%w: password must be at least 8 characters long", api.ErrValidation)
	}

	user, err := s.consume(ctx, email, ChallengePasswordReset, otp)
	if err != nil {
		return nil, nil, err
	}

	hash, err := HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	// The watermark is backdated one second so the auto-login tokens minted
	// below, whose issued-at has second resolution, are not themselves stale.
	changedAt := s.now().Add(-time.Second)
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, nil, err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "Password reset completed", slog.String("user_id", user.ID))
	return pair, user, nil
}

func (s *AuthServiceImpl) Authorize(ctx context.Context, token string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Authorize")
	defer span.End()

	userID, issuedAt, err := s.tokens.Verify(token, TokenAccess)
	if err != nil {
		s.metrics.CountTokenRejection(ctx, rejectReason(err))
		return nil, fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.metrics.CountTokenRejection(ctx, "user_gone")
			return nil, fmt.Errorf("%w: the user belonging to this token no longer exists", api.ErrUnauthenticated)
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(issuedAt) {
		s.metrics.CountTokenRejection(ctx, "stale")
		return nil, fmt.Errorf("%w: user recently changed password, please log in again", api.ErrUnauthenticated)
	}

	return user, nil
}

func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RefreshSession")
	defer span.End()

	userID, issuedAt, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: the user belonging to this token no longer exists", api.ErrUnauthenticated)
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(issuedAt) {
		return nil, fmt.Errorf("%w: user recently changed password, please log in again", api.ErrUnauthenticated)
	}

	return s.issuePair(user.ID)
}

// consume hashes the candidate code and redeems the challenge in one step.
func (s *AuthServiceImpl) consume(ctx context.Context, email string, purpose ChallengePurpose, code string) (*User, error) {
	user, err := s.repo.ConsumeChallenge(ctx, email, purpose, HashSecret(code), s.now())
	if err != nil {
		if errors.Is(err, api.ErrCodeInvalidOrExpired) {
			s.metrics.CountCodeVerification(ctx, purpose.String(), "failure")
		}
		return nil, err
	}
	s.metrics.CountCodeVerification(ctx, purpose.String(), "success")
	return user, nil
}

func rejectReason(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
