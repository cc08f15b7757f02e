package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/domain"
	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/authsdk"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type LoginHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Login Endpoint
//	@Description	Authenticate with email and password and receive a token pair.
//	@Description	Wrong password and unknown email produce the same error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, device_id"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "email and password are required")
		return
	}

	pair, err := h.SessionService.Login(ctx, req.Email, req.Password, req.DeviceID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "invalid email or password")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "login failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

func tokenResponse(pair *domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		DeviceID:     pair.DeviceID,
	}
}
