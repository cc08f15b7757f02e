package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/authsdk"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type RegisterHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Register Account Endpoint
//	@Description	Create a new account and sign it straight in, returning the first token pair.
//	@Description	Role defaults to "caregiver"; a device id is generated when the client sends none.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, device_id"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		409		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "email and password are required")
		return
	}

	pair, _, err := h.SessionService.Register(ctx, service.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		ZoneID:      req.ZoneID,
		DeviceID:    req.DeviceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, httpx.CodeEmailTaken, "email address is already registered")
		case errors.Is(err, service.ErrInvalidInput):
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid email, password, or role")
		default:
			log.Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(pair))
}
