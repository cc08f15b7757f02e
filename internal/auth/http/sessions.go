package http

import (
	"errors"
	"net/http"

	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/pkg/authsdk"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

type SessionsHandler struct {
	SessionService *service.SessionService
}

// HandleList godoc
//
//	@Summary		List Sessions Endpoint
//	@Description	List the caller's live refresh sessions, one per device login.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse	"sessions"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/sessions [get].
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeMissingToken, "not authenticated")
		return
	}

	sessions, err := h.SessionService.Sessions(ctx, userID)
	if err != nil {
		log.Error("failed to list sessions", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "failed to list sessions")
		return
	}

	resp := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, authsdk.SessionInfo{
			SessionID: s.ID,
			DeviceID:  s.DeviceID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke godoc
//
//	@Summary		Revoke Session Endpoint
//	@Description	Revoke one refresh session by id. Session ids belonging to other users
//	@Description	read as not found.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path	string	true	"Session id"
//	@Success		204	"Session revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Unknown session id"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/sessions/{id} [delete].
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeMissingToken, "not authenticated")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "session id is required")
		return
	}

	if err := h.SessionService.RevokeSession(ctx, userID, sessionID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "unknown session id")
			return
		}
		log.Error("failed to revoke session", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "failed to revoke session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
