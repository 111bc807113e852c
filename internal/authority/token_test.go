package authority

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims SessionClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tok
}

func TestParseSessionToken(t *testing.T) {
	tok := signedToken(t, SessionClaims{
		TeamID: "team-1",
		GameID: "g1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := ParseSessionToken(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.TeamID != "team-1" || claims.GameID != "g1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseSessionTokenExpired(t *testing.T) {
	tok := signedToken(t, SessionClaims{
		TeamID: "team-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	claims, err := ParseSessionToken(tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	// Claims are still returned so the caller can identify the team.
	if claims.TeamID != "team-1" {
		t.Errorf("expected claims alongside expiry error, got %+v", claims)
	}
}

func TestParseSessionTokenGarbage(t *testing.T) {
	if _, err := ParseSessionToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
