package utils // package utils provides helpers for token creation and id generation

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are encoded in the Authorization
// header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a principal.  The
// service does not issue tokens itself; identity is supplied by an
// upstream provider.  This helper mints tokens for local development and
// tests.  The JWT includes the standard claims sub, exp and iat.
func NewAccessToken(secret, subject string, ttl time.Duration) (AccessToken, error) {
	if subject == "" {
		return AccessToken{}, errors.New("subject is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	// Create a new token object specifying the signing method (HS256).
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
