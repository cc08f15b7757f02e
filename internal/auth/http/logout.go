package http

import (
	"errors"
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type LogoutHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Logout Endpoint
//	@Description	Blacklist the presented access token and revoke every refresh session of
//	@Description	its user. Idempotent: repeated logout still returns success. An expired or
//	@Description	malformed token is accepted; only a missing or non-Bearer header is rejected.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	map[string]string		"status"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// The token is extracted here, not in AuthnMiddleware: a revoked,
	// expired, or even unparseable token must still log out cleanly.
	raw, code := httpx.BearerToken(r)
	if code != "" {
		httpx.WriteError(w, http.StatusUnauthorized, code, "missing or malformed bearer token")
		return
	}

	if err := h.SessionService.Logout(ctx, raw); err != nil {
		if errors.Is(err, service.ErrGuardUnavailable) {
			httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeStoreUnavailable,
				"token revocation state unavailable")
			return
		}
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "logout failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
