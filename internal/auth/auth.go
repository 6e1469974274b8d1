// Package auth issues and verifies the expiring operator tokens used by
// the dashboard API, alongside the static bootstrap admin token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shuttle/internal/services"
)

const issuer = "shuttle"

// AdminSubject is the principal recorded for static-token access.
const AdminSubject = "admin"

// Issue mints an HS256 operator token for the given subject.
func Issue(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", services.Wrap(services.ErrConfiguration, "auth", "issue", "token secret is not configured", nil)
	}
	if strings.TrimSpace(subject) == "" {
		return "", services.Wrap(services.ErrValidation, "auth", "issue", "subject is required", nil)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a bearer credential. It accepts the static admin token or
// a valid unexpired operator JWT and returns the authenticated subject.
func Verify(adminToken, secret, presented string) (string, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "verify", "missing credential", nil)
	}

	if adminToken != "" && subtle.ConstantTimeCompare([]byte(adminToken), []byte(presented)) == 1 {
		return AdminSubject, nil
	}

	if strings.TrimSpace(secret) == "" {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "verify", "invalid credential", nil)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(presented, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		if err == nil {
			err = errors.New("token invalid")
		}
		return "", services.Wrap(services.ErrUnauthorized, "auth", "verify", "invalid credential", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "verify", "token has no subject", nil)
	}
	return claims.Subject, nil
}
