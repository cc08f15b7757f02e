package domain

import "time"

// RefreshToken is the durable record backing one issued refresh token.
// Only the SHA-256 fingerprint of the token is stored; the signed JWT
// itself never touches the database.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string

	// DeviceID identifies the client session the token was issued to.
	DeviceID string

	ExpiresAt time.Time

	// RevokedAt is nil while the token is live. Set once, never cleared.
	RevokedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the token is usable at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair is what a successful register/login/refresh hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	DeviceID     string
}
