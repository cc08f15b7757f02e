package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/authsdk"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/jwtx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type RefreshHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Refresh Token Endpoint
//	@Description	Exchange a live refresh token for a new access token. The refresh token
//	@Description	itself is not rotated and stays valid until expiry or revocation.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, device_id"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeMissingToken, "refresh_token is required")
		return
	}

	pair, err := h.SessionService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenRevoked):
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenRevoked, "refresh token has been revoked")
		case errors.Is(err, service.ErrTokenExpired):
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenExpired, "refresh token has expired")
		case errors.Is(err, jwtx.ErrWrongUse):
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenMalformed, "not a refresh token")
		default:
			if code, desc, ok := tokenErrorResponse(err); ok {
				httpx.WriteError(w, http.StatusUnauthorized, code, desc)
				return
			}
			log.Error("refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "refresh failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// tokenErrorResponse maps jwtx verification errors; ok is false for
// anything that is not a token problem.
func tokenErrorResponse(err error) (code, desc string, ok bool) {
	switch {
	case errors.Is(err, jwtx.ErrMalformed),
		errors.Is(err, jwtx.ErrExpired),
		errors.Is(err, jwtx.ErrNotYetValid),
		errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrUnknownKID),
		errors.Is(err, jwtx.ErrAlgMismatch),
		errors.Is(err, jwtx.ErrIssuer),
		errors.Is(err, jwtx.ErrAudience):
		code, desc = httpx.MapTokenError(err)
		return code, desc, true
	}
	return "", "", false
}
