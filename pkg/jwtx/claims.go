package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token use values embedded in the token_use claim. A refresh token must
// never pass where an access token is expected and vice versa, so the
// kind is part of the signed payload.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Default token TTL constants. Overridable per-service via config.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Claims is the principal payload carried by both token kinds. Claims are
// immutable once issued: changing a user's role or zone does not touch
// outstanding tokens, which stay valid until expiry or revocation.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// Role is one of the closed role set (caregiver, coordinator,
	// admin, family-viewer).
	Role string `json:"role,omitempty"`

	// ZoneID is the geographic/organizational partition. Absent for
	// cross-zone roles such as admin; an absent zone is still a valid
	// token.
	ZoneID string `json:"zone_id,omitempty"`

	// DeviceID ties the token to the client device session it was
	// issued for.
	DeviceID string `json:"device_id,omitempty"`

	// TokenUse is "access" or "refresh".
	TokenUse string `json:"token_use,omitempty"`
}

// NewClaims builds minimally-correct claims for the given token use.
func NewClaims(
	subject, email, role, zoneID, deviceID, use string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:    email,
		Role:     role,
		ZoneID:   zoneID,
		DeviceID: deviceID,
		TokenUse: use,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateUse ensures the token_use claim matches the expected kind.
func (c *Claims) ValidateUse(expected string) error {
	if c.TokenUse != expected {
		return ErrWrongUse
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// RemainingLifetime returns how long the token is still valid at now.
// Zero or negative means already expired. This is what a blacklist entry
// TTL must be computed from so the entry never outlives the token.
func (c *Claims) RemainingLifetime(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
