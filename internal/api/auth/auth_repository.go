package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-user-auth/internal/api"
)

// AuthRepo is the credential store contract. Uniqueness of username/email is
// enforced here and surfaced as api.ErrConflict, never as a generic error.
type AuthRepo interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)

	// SetChallenge stores a challenge digest and expiry under the purpose's
	// field pair, replacing any prior value for the same purpose.
	SetChallenge(ctx context.Context, userID string, purpose ChallengePurpose, digest string, expiresAt time.Time) error

	// ClearChallenge drops the purpose's hash/expiry pair without consuming it.
	ClearChallenge(ctx context.Context, userID string, purpose ChallengePurpose) error

	// ConsumeChallenge atomically clears the purpose's field pair if and only
	// if the digest matches and the expiry lies in the future, returning the
	// owning user. Fails with api.ErrCodeInvalidOrExpired otherwise, without
	// revealing whether the email, the code or the expiry was at fault.
	ConsumeChallenge(ctx context.Context, email string, purpose ChallengePurpose, digest string, now time.Time) (*User, error)

	MarkEmailVerified(ctx context.Context, userID string) error

	// UpdatePassword replaces the password hash and advances the
	// password-changed watermark.
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
}

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type PostgresAuthRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresAuthRepo(db DB, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		db:     db,
	}
}

// challengeColumns maps a purpose to its hash/expiry column pair. Column
// names are fixed identifiers, never user input.
func challengeColumns(purpose ChallengePurpose) (hashCol, expiresCol string) {
	switch purpose {
	case ChallengeEmailVerify:
		return "email_verify_hash", "email_verify_expires_at"
	case ChallengeLoginOTP:
		return "login_otp_hash", "login_otp_expires_at"
	case ChallengePasswordReset:
		return "reset_otp_hash", "reset_otp_expires_at"
	default:
		panic(fmt.Sprintf("unknown challenge purpose: %d", purpose))
	}
}

const userColumns = `id, username, email, password_hash, is_verified,
	email_verify_hash, email_verify_expires_at,
	login_otp_hash, login_otp_expires_at,
	reset_otp_hash, reset_otp_expires_at,
	password_changed_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsVerified,
		&u.EmailVerifyHash, &u.EmailVerifyExpiresAt,
		&u.LoginOTPHash, &u.LoginOTPExpiresAt,
		&u.ResetOTPHash, &u.ResetOTPExpiresAt,
		&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateUser inserts a new unverified user. Emails are stored lowercased so
// uniqueness is case-insensitive.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	id := uuid.NewString()
	email = strings.ToLower(strings.TrimSpace(email))

	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		id, username, email, passwordHash)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", api.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`,
		strings.TrimSpace(email))

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", api.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", api.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return user, nil
}

// SetChallenge writes hash and expiry in one UPDATE so a reader can never
// observe a half-written pair.
func (r *PostgresAuthRepo) SetChallenge(ctx context.Context, userID string, purpose ChallengePurpose, digest string, expiresAt time.Time) error {
	hashCol, expiresCol := challengeColumns(purpose)
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $1, %s = $2, updated_at = now() WHERE id = $3`, hashCol, expiresCol),
		digest, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("failed to store %s challenge: %w", purpose, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) ClearChallenge(ctx context.Context, userID string, purpose ChallengePurpose) error {
	hashCol, expiresCol := challengeColumns(purpose)
	_, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = NULL, %s = NULL, updated_at = now() WHERE id = $1`, hashCol, expiresCol),
		userID)
	if err != nil {
		return fmt.Errorf("failed to clear %s challenge: %w", purpose, err)
	}
	return nil
}

// ConsumeChallenge is the single-use gate: the conditional UPDATE clears the
// pair in the same statement that checks it, so a code can only ever be
// redeemed once even under concurrent verification attempts.
func (r *PostgresAuthRepo) ConsumeChallenge(ctx context.Context, email string, purpose ChallengePurpose, digest string, now time.Time) (*User, error) {
	hashCol, expiresCol := challengeColumns(purpose)
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`UPDATE users SET %s = NULL, %s = NULL, updated_at = now()
		 WHERE email = lower($1) AND %s = $2 AND %s > $3
		 RETURNING `+userColumns, hashCol, expiresCol, hashCol, expiresCol),
		strings.TrimSpace(email), digest, now)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrCodeInvalidOrExpired
		}
		return nil, fmt.Errorf("failed to consume %s challenge: %w", purpose, err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, password_changed_at = $2, updated_at = now() WHERE id = $3`,
		passwordHash, changedAt, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", api.ErrNotFound)
	}
	return nil
}
