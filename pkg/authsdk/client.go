package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the carelink auth service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new auth service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a decoded service error, carrying the machine-readable
// code alongside the HTTP status.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authsdk: %s (%d): %s", e.Code, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("authsdk: %s (%d)", e.Code, e.StatusCode)
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.postJSON(ctx, "/v1/auth/register", req, &out, http.StatusCreated, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates an existing account.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.postJSON(ctx, "/v1/auth/login", req, &out, http.StatusOK, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	req := RefreshRequest{RefreshToken: refreshToken}
	if err := c.postJSON(ctx, "/v1/auth/refresh", req, &out, http.StatusOK, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the access token and every refresh session of its user.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.postJSON(ctx, "/v1/auth/logout", nil, nil, http.StatusOK, accessToken)
}

// UserInfo returns the account behind the access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := c.getJSON(ctx, "/v1/userinfo", &out, accessToken); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists the caller's live refresh sessions.
func (c *Client) Sessions(ctx context.Context, accessToken string) (*SessionsResponse, error) {
	var out SessionsResponse
	if err := c.getJSON(ctx, "/v1/sessions", &out, accessToken); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeSession revokes one refresh session by id.
func (c *Client) RevokeSession(ctx context.Context, accessToken, sessionID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusNoContent)
}

// JWKS fetches the public key set for token verification.
func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	if err := c.getJSON(ctx, "/.well-known/jwks.json", &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// Liveness checks if the service is alive.
func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/livez", &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// Readiness checks if the service and its dependencies are ready.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/readyz", &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	accessToken string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) postJSON(
	ctx context.Context,
	path string,
	in, out any,
	expectedStatus int,
	accessToken string,
) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	resp, err := c.do(ctx, http.MethodPost, path, body, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, expectedStatus)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, accessToken string) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}

// decodeJSON decodes a response into target, converting non-expected
// statuses into an *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "UnknownError"}
		var body ErrorResponse
		if json.Unmarshal(bodyBytes, &body) == nil && body.Error != "" {
			apiErr.Code = body.Error
			apiErr.Description = body.Description
		}
		return apiErr
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
