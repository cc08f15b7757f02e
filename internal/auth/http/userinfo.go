package http

import (
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/authsdk"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type UserInfoHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Get user information
//	@Description	Returns the account behind the access token, read from the current user
//	@Description	row rather than the (possibly stale) token claims.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"user_id, email, display_name, role, zone_id"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeMissingToken, "not authenticated")
		return
	}

	user, err := h.SessionService.UserInfo(ctx, userID)
	if err != nil {
		log.Warn("failed to load user", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "failed to load user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role.String(),
		ZoneID:      user.ZoneID,
	})
}
