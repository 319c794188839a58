package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-user-auth/internal/api"
)

var userRowColumns = []string{
	"id", "username", "email", "password_hash", "is_verified",
	"email_verify_hash", "email_verify_expires_at",
	"login_otp_hash", "login_otp_expires_at",
	"reset_otp_hash", "reset_otp_expires_at",
	"password_changed_at", "created_at", "updated_at",
}

func userRow(id, username, email, passwordHash string, verified bool) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(userRowColumns).AddRow(
		id, username, email, passwordHash, verified,
		nil, nil, nil, nil, nil, nil, nil, now, now,
	)
}

func newMockRepo(t *testing.T) (*PostgresAuthRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresAuthRepo(mockPool, slog.Default()), mockPool
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "testuser", "test@example.com", "hashed").
			WillReturnRows(userRow("user123", "testuser", "test@example.com", "hashed", false))

		user, err := repo.CreateUser(ctx, "testuser", "Test@Example.com", "hashed")

		require.NoError(t, err)
		assert.Equal(t, "user123", user.ID)
		assert.False(t, user.IsVerified)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "testuser", "test@example.com", "hashed").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		user, err := repo.CreateUser(ctx, "testuser", "test@example.com", "hashed")

		assert.ErrorIs(t, err, api.ErrConflict)
		assert.Nil(t, user)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("FROM users WHERE email").
			WithArgs("test@example.com").
			WillReturnRows(userRow("user123", "testuser", "test@example.com", "hashed", true))

		user, err := repo.GetUserByEmail(ctx, "test@example.com")

		require.NoError(t, err)
		assert.Equal(t, "user123", user.ID)
		assert.True(t, user.IsVerified)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("FROM users WHERE email").
			WithArgs("nobody@example.com").
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.GetUserByEmail(ctx, "nobody@example.com")

		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.Nil(t, user)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSetChallenge(t *testing.T) {
	ctx := context.Background()
	expiresAt := time.Now().Add(10 * time.Minute)

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET login_otp_hash").
			WithArgs("digest", expiresAt, "user123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.SetChallenge(ctx, "user123", ChallengeLoginOTP, "digest", expiresAt)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UserMissing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET email_verify_hash").
			WithArgs("digest", expiresAt, "ghost").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetChallenge(ctx, "ghost", ChallengeEmailVerify, "digest", expiresAt)

		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestConsumeChallenge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("UPDATE users SET reset_otp_hash").
			WithArgs("test@example.com", "digest", now).
			WillReturnRows(userRow("user123", "testuser", "test@example.com", "hashed", true))

		user, err := repo.ConsumeChallenge(ctx, "test@example.com", ChallengePasswordReset, "digest", now)

		require.NoError(t, err)
		assert.Equal(t, "user123", user.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoMatchingRow", func(t *testing.T) {
		// Wrong digest, expired code and unknown email all surface as the
		// same error.
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("UPDATE users SET reset_otp_hash").
			WithArgs("test@example.com", "wrong-digest", now).
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.ConsumeChallenge(ctx, "test@example.com", ChallengePasswordReset, "wrong-digest", now)

		assert.ErrorIs(t, err, api.ErrCodeInvalidOrExpired)
		assert.Nil(t, user)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMarkEmailVerified(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET is_verified").
			WithArgs("user123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.MarkEmailVerified(ctx, "user123"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UserMissing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET is_verified").
			WithArgs("ghost").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.MarkEmailVerified(ctx, "ghost"), api.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	changedAt := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET password_hash").
			WithArgs("new-hash", changedAt, "user123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdatePassword(ctx, "user123", "new-hash", changedAt))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UserMissing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectExec("UPDATE users SET password_hash").
			WithArgs("new-hash", changedAt, "ghost").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.UpdatePassword(ctx, "ghost", "new-hash", changedAt), api.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestClearChallenge(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	mockPool.ExpectExec("UPDATE users SET login_otp_hash").
		WithArgs("user123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.ClearChallenge(context.Background(), "user123", ChallengeLoginOTP))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
