package session

import (
	"context"
	"time"
)

// DeviceContext describes the client that owns a session.
type DeviceContext struct {
	UserAgent string
	IP        string
}

// Row mirrors the vault.sessions row used by the session subsystem.
type Row struct {
	ID                  string
	UserID              string
	RefreshTokenHash    string
	CreatedAt           time.Time
	LastUsedAt          *time.Time
	ExpiresAt           time.Time
	RevokedAt           *time.Time
	ReplacedBySessionID *string
	UserAgent           string
	IP                  string
}

// Active reports whether r can still be used at now.
func (r Row) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// NewRow is the input for a session insert.
type NewRow struct {
	ID          string
	UserID      string
	RefreshHash string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Device      DeviceContext
}

// Store abstracts persistence for session state.
//
// Rotate and the revoke methods must be atomic conditional updates; no
// caller-side locking is assumed.
type Store interface {
	// Create inserts a new active session.
	Create(ctx context.Context, row NewRow) error

	// GetByID loads a session row by ID. Returns ErrSessionNotFound.
	GetByID(ctx context.Context, sessionID string) (Row, error)

	// GetByRefreshHash loads a session row by refresh digest. Returns ErrSessionNotFound.
	GetByRefreshHash(ctx context.Context, refreshHash string) (Row, error)

	// Rotate revokes the active session identified by presentedHash and inserts
	// next as its replacement in one atomic step. next.UserID is taken from the
	// revoked row.
	//
	// On failure it returns the matching row (if any) together with
	// ErrSessionNotFound, ErrSessionExpired, ErrSessionRevoked or
	// ErrRefreshReuseDetected.
	Rotate(ctx context.Context, now time.Time, presentedHash string, next NewRow) (Row, error)

	// RevokeByHash revokes the session with refreshHash and returns it.
	// revoked is true only for the call that set revoked_at; later calls
	// return the row unchanged.
	RevokeByHash(ctx context.Context, now time.Time, refreshHash string) (row Row, revoked bool, err error)

	// RevokeOwned revokes sessionID only if it belongs to userID (idempotent).
	// Returns ErrSessionNotOwned otherwise.
	RevokeOwned(ctx context.Context, now time.Time, userID, sessionID string) error

	// RevokeAllExcept revokes every active session of userID except exceptSessionID
	// (empty means none are spared). Returns the number of sessions revoked.
	RevokeAllExcept(ctx context.Context, now time.Time, userID, exceptSessionID string) (int64, error)

	// ListActive returns the active sessions of userID, newest first.
	ListActive(ctx context.Context, now time.Time, userID string) ([]Row, error)
}

// classifyInactive maps a row that failed the active check to its rejection.
func classifyInactive(row Row, now time.Time) error {
	switch {
	case row.RevokedAt != nil && row.ReplacedBySessionID != nil:
		return ErrRefreshReuseDetected
	case row.RevokedAt != nil:
		return ErrSessionRevoked
	case !row.ExpiresAt.After(now):
		return ErrSessionExpired
	default:
		// Active at read time but the CAS lost: a concurrent rotation or revoke won.
		return ErrSessionRevoked
	}
}
