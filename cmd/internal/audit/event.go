package audit

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Action string

const (
	ActionRegister         Action = "REGISTER"
	ActionLoginSuccess     Action = "LOGIN_SUCCESS"
	ActionLoginFailure     Action = "LOGIN_FAILURE"
	ActionLoginChallenge   Action = "LOGIN_CHALLENGE"
	ActionLogout           Action = "LOGOUT"
	ActionTokenRefresh     Action = "TOKEN_REFRESH"
	ActionSessionRevoke    Action = "SESSION_REVOKE"
	ActionSessionRevokeAll Action = "SESSION_REVOKE_ALL"
	Action2FAEnable        Action = "2FA_ENABLE"
	Action2FADisable       Action = "2FA_DISABLE"
	Action2FAVerify        Action = "2FA_VERIFY"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// UnknownIP is stored when the actor address could not be determined.
const UnknownIP = "unknown"

const (
	MaxDetailKeys     = 8
	MaxDetailValueLen = 256
)

// Event is one append-only audit record.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	AccountID string            `json:"accountId,omitempty"`
	Action    Action            `json:"action"`
	Outcome   Outcome           `json:"outcome"`
	ActorIP   string            `json:"actorIp"`
	UserAgent string            `json:"userAgent,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// allowedDetails lists the detail keys each action may carry.
// Anything else is dropped, so secrets can never leak through details.
var allowedDetails = map[Action]map[string]struct{}{
	ActionRegister:         set("emailDomain"),
	ActionLoginSuccess:     set("method", "emailDomain"),
	ActionLoginFailure:     set("reason", "emailDomain"),
	ActionLoginChallenge:   set("emailDomain"),
	ActionLogout:           set("reason"),
	ActionTokenRefresh:     set("reason", "reuseDetected"),
	ActionSessionRevoke:    set("targetSessionId", "reason"),
	ActionSessionRevokeAll: set("revoked", "keptCurrent"),
	Action2FAEnable:        set("reason"),
	Action2FADisable:       set("reason"),
	Action2FAVerify:        set("reason", "attempt"),
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// Known reports whether a is a defined action.
func (a Action) Known() bool {
	_, ok := allowedDetails[a]
	return ok
}

// SanitizeDetails keeps allow-listed keys only, at most MaxDetailKeys of them,
// with values truncated to MaxDetailValueLen bytes on a rune boundary.
func SanitizeDetails(action Action, in map[string]string) map[string]string {
	allowed := allowedDetails[action]
	if len(in) == 0 || len(allowed) == 0 {
		return nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		if _, ok := allowed[k]; !ok {
			continue
		}
		if len(out) == MaxDetailKeys {
			break
		}
		out[k] = truncate(v, MaxDetailValueLen)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// normalize fills defaults and sanitizes details.
func (e Event) normalize(now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()

	e.ActorIP = strings.TrimSpace(e.ActorIP)
	if e.ActorIP == "" {
		e.ActorIP = UnknownIP
	}
	e.UserAgent = truncate(strings.TrimSpace(e.UserAgent), 512)

	if e.Outcome != OutcomeSuccess {
		e.Outcome = OutcomeFailure
	}
	e.Details = SanitizeDetails(e.Action, e.Details)
	return e
}
