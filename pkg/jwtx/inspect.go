package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeUnverified parses a token's claims WITHOUT checking signature or
// expiry, returning ok=false on any parse failure. It must never feed an
// authorization decision; it exists for inspection paths like computing a
// blacklist TTL from a token the caller is about to discard.
func DecodeUnverified(tokenStr string) (*Claims, bool) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// IsExpired reports whether the token's exp has passed at now. Any token
// that cannot be parsed counts as expired (fail-closed).
func IsExpired(tokenStr string, now time.Time) bool {
	claims, ok := DecodeUnverified(tokenStr)
	if !ok {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.After(claims.ExpiresAt.Time)
}
