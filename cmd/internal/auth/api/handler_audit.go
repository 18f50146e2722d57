package authapi

import (
	"net/http"
	"strconv"

	"vaultauth/cmd/internal/audit"
)

// handleAuditLogs pages through the caller's own audit events.
func (h *Handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := fieldErrors{}
	page := queryInt(fields, q.Get("page"), "page")
	limit := queryInt(fields, q.Get("limit"), "limit")
	if !fields.empty() {
		writeValidation(w, fields)
		return
	}

	if h.auditLog == nil {
		p, l, err := audit.NormalizePage(page, limit)
		if err != nil {
			h.writeServiceError(w, "audit.list.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, audit.Page{Items: []audit.Event{}, Page: p, Limit: l})
		return
	}

	out, err := h.auditLog.List(r.Context(), claimsFrom(r).UserID, page, limit)
	if err != nil {
		h.writeServiceError(w, "audit.list.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(f fieldErrors, raw, field string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		f.add(field, "must be a positive integer")
		return 0
	}
	return n
}
