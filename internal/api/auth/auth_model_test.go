package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChangedPasswordAfter(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("NeverChanged", func(t *testing.T) {
		u := &User{}
		assert.False(t, u.ChangedPasswordAfter(base))
	})

	t.Run("ChangedBeforeIssue", func(t *testing.T) {
		changed := base.Add(-time.Minute)
		u := &User{PasswordChangedAt: &changed}
		assert.False(t, u.ChangedPasswordAfter(base))
	})

	t.Run("ChangedAfterIssue", func(t *testing.T) {
		changed := base.Add(time.Minute)
		u := &User{PasswordChangedAt: &changed}
		assert.True(t, u.ChangedPasswordAfter(base))
	})

	t.Run("ChangedExactlyAtIssue", func(t *testing.T) {
		// The boundary counts as stale: tokens minted in the same second as
		// a password change are rejected.
		changed := base
		u := &User{PasswordChangedAt: &changed}
		assert.True(t, u.ChangedPasswordAfter(base))
	})
}

func TestChallengePurpose(t *testing.T) {
	assert.Equal(t, 6, ChallengeEmailVerify.CodeDigits())
	assert.Equal(t, 4, ChallengeLoginOTP.CodeDigits())
	assert.Equal(t, 6, ChallengePasswordReset.CodeDigits())

	assert.Equal(t, "email_verify", ChallengeEmailVerify.String())
	assert.Equal(t, "login_otp", ChallengeLoginOTP.String())
	assert.Equal(t, "password_reset", ChallengePasswordReset.String())
}
