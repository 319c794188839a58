package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-user-auth/config"
)

// TokenKind selects which token class (and therefore which signing key and
// TTL) an operation applies to.
type TokenKind int

const (
	TokenAccess TokenKind = iota
	TokenRefresh
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and tokens
	// signed for the wrong kind.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpired marks a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token has expired")
)

// TokenIssuer signs and verifies the two bearer token classes. Access and
// refresh tokens use separate HMAC secrets. Claims carry the subject user ID
// plus issued-at and expiry timestamps; issued-at feeds the stale-token check
// after password changes.
type TokenIssuer struct {
	cfg config.JWTConfig
	now func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// IssueAccess mints a short-lived access token for the given user.
func (t *TokenIssuer) IssueAccess(userID string) (string, error) {
	return t.issue(userID, []byte(t.cfg.SecretKey), t.cfg.AccessTokenTTL)
}

// IssueRefresh mints a long-lived refresh token for the given user.
func (t *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return t.issue(userID, []byte(t.cfg.RefreshSecretKey), t.cfg.RefreshTokenTTL)
}

func (t *TokenIssuer) issue(userID string, key []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    t.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry for the given kind and returns the
// subject user ID and the issue time. It fails with ErrTokenExpired for a
// well-formed but expired token and ErrTokenInvalid for everything else.
func (t *TokenIssuer) Verify(tokenString string, kind TokenKind) (string, time.Time, error) {
	key := []byte(t.cfg.SecretKey)
	if kind == TokenRefresh {
		key = []byte(t.cfg.RefreshSecretKey)
	}

	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(t.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, ErrTokenExpired
		}
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return "", time.Time{}, ErrTokenInvalid
	}

	return claims.Subject, claims.IssuedAt.Time, nil
}
