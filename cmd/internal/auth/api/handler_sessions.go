package authapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/session"
)

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	current := session.Current{SessionID: claims.SessionID}
	if secret, ok := h.refreshTokenFromCookie(r); ok {
		current.RefreshSecret = secret
	}

	infos, err := h.sessions.List(r.Context(), h.now(), claims.UserID, current)
	if err != nil {
		h.writeServiceError(w, "auth.sessions.list.fail", err)
		return
	}

	out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(infos))}
	for _, in := range infos {
		out.Sessions = append(out.Sessions, toSessionResponse(in))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	target := mux.Vars(r)["id"]

	ctx := r.Context()
	dev := h.device(r)

	if err := h.sessions.RevokeSession(ctx, h.now(), claims.UserID, target); err != nil {
		h.record(ctx, dev, claims.UserID, claims.SessionID, audit.ActionSessionRevoke, false, map[string]string{
			"targetSessionId": target,
			"reason":          "not_found",
		})
		h.writeServiceError(w, "auth.sessions.revoke.fail", err)
		return
	}

	h.record(ctx, dev, claims.UserID, claims.SessionID, audit.ActionSessionRevoke, true, map[string]string{"targetSessionId": target})
	if target == claims.SessionID {
		h.clearSessionCookies(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	var req revokeAllRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	exceptCurrent := req.ExceptCurrent == nil || *req.ExceptCurrent

	claims := claimsFrom(r)
	ctx := r.Context()
	dev := h.device(r)

	keep := ""
	if exceptCurrent {
		keep = claims.SessionID
	}
	n, err := h.sessions.RevokeAllExceptSession(ctx, h.now(), claims.UserID, keep)
	if err != nil {
		h.record(ctx, dev, claims.UserID, claims.SessionID, audit.ActionSessionRevokeAll, false, nil)
		h.writeServiceError(w, "auth.sessions.revoke_all.fail", err)
		return
	}

	h.record(ctx, dev, claims.UserID, claims.SessionID, audit.ActionSessionRevokeAll, true, map[string]string{
		"revoked":     strconv.FormatInt(n, 10),
		"keptCurrent": strconv.FormatBool(exceptCurrent),
	})
	if !exceptCurrent {
		h.clearSessionCookies(w)
	}
	writeJSON(w, http.StatusOK, revokeAllResponse{Revoked: n})
}
