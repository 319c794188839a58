package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret returns the hex SHA-256 digest of a short-lived secret (OTP or
// verification code). Deliberately unsalted: the stored digest must be
// recomputable from a candidate code for lookup. This is never used for
// passwords.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a candidate secret against a stored digest in
// constant time.
func SecretMatches(secret, digest string) bool {
	candidate := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}

// HashPassword hashes a raw password with bcrypt at the given cost.
// The salt is generated per call by bcrypt itself.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a raw password and a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateNumericCode returns a random code of exactly the given number of
// digits (no leading zero), e.g. 6 -> [100000, 999999].
func GenerateNumericCode(digits int) (string, error) {
	if digits < 1 {
		return "", fmt.Errorf("code length must be positive, got %d", digits)
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}
	return n.Add(n, low).String(), nil
}
