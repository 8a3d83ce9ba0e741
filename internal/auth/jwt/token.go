package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoExpiry     = errors.New("token has no expiry")
)

// Claims is the subset of the API's access-token claims the client reads.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Inspect decodes a token without verifying its signature. The client never
// holds the signing key; the server still validates every request.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expiry returns the exp claim.
func Expiry(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired treats unreadable tokens and tokens without exp as expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil {
		return true
	}
	return exp.Before(now)
}

// IsExpiringSoon reports whether the token expires within threshold of now.
// Unreadable tokens count as expiring.
func IsExpiringSoon(token string, now time.Time, threshold time.Duration) bool {
	exp, err := Expiry(token)
	if err != nil {
		return true
	}
	return exp.Before(now.Add(threshold))
}
