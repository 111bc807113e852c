package authority

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("session token expired")

// SessionClaims are the claims the authority embeds in session tokens.
type SessionClaims struct {
	TeamID string `json:"teamId"`
	GameID string `json:"gameId"`
	jwt.RegisteredClaims
}

// ParseSessionToken extracts the claims from a session token without
// verifying its signature; verification is the authority's job, the
// client only needs the identifiers and the expiry for resume.
func ParseSessionToken(token string) (SessionClaims, error) {
	var claims SessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return SessionClaims{}, fmt.Errorf("parsing session token: %w", err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}
