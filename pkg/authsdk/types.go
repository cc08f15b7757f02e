// Package authsdk is the Go client for the carelink auth service. It
// carries the request/response types shared between the service handlers
// and API consumers, plus a small HTTP client wrapping every endpoint.
package authsdk

import (
	"time"

	"github.com/carelinkhq/carelink/pkg/jwtx"
)

// RegisterRequest creates an account. Role defaults to "caregiver" and
// DeviceID is generated server-side when omitted.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	ZoneID      string `json:"zone_id,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	DeviceID     string `json:"device_id,omitempty"`
}

// UserInfoResponse describes the authenticated account.
type UserInfoResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	ZoneID      string `json:"zone_id,omitempty"`
}

// SessionInfo is one live refresh session (one device login).
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionsResponse lists the caller's live sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// HealthChecks reports per-dependency state on the readiness endpoint.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
	Signer   string `json:"signer,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// JWKSResponse is the public key set served at /.well-known/jwks.json.
type JWKSResponse = jwtx.JWKS

// ErrorResponse mirrors the service's uniform error body.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
