package session

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenMeta carries the locally readable claims of a backend-issued token.
type TokenMeta struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken reads expiry and subject from the bearer token without
// verifying the signature. The portal never holds the backend's signing
// secret; it only needs the expiry so IsAuthenticated stays a local check.
// The backend remains the authority: every authenticated call re-validates.
func InspectToken(tokenStr string) (*TokenMeta, error) {
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}

	meta := &TokenMeta{}
	if sub, err := claims.GetSubject(); err == nil {
		meta.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		meta.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		meta.IssuedAt = iat.Time
	}
	return meta, nil
}
