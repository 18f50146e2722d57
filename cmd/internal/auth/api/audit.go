package authapi

import (
	"context"

	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/session"
)

// record writes an audit event and bumps the outcome counter.
// It never fails the request.
func (h *Handler) record(ctx context.Context, dev session.DeviceContext, accountID, sessionID string, action audit.Action, ok bool, details map[string]string) {
	outcome := audit.OutcomeFailure
	if ok {
		outcome = audit.OutcomeSuccess
	}
	h.metrics.AuthOutcome(string(action), string(outcome))
	h.audit.Record(ctx, audit.Event{
		AccountID: accountID,
		SessionID: sessionID,
		Action:    action,
		Outcome:   outcome,
		ActorIP:   dev.IP,
		UserAgent: dev.UserAgent,
		Details:   details,
	})
}

func (h *Handler) recordLoginFailure(ctx context.Context, dev session.DeviceContext, accountID, email, reason string) {
	h.record(ctx, dev, accountID, "", audit.ActionLoginFailure, false, map[string]string{
		"reason":      reason,
		"emailDomain": emailDomain(email),
	})
}
