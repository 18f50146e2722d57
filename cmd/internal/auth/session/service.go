package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"vaultauth/cmd/identity/ids"
	"vaultauth/cmd/security/token"
)

// Service implements the high-level session operations.
//
// It issues sessions (access + refresh), validates access tokens, rotates
// refresh secrets with reuse detection, and revokes per-session or per-account.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store
	hasher *token.Hasher
}

// Issued is the result of issuing or rotating a session.
// It includes a short-lived access token and an opaque refresh secret.
type Issued struct {
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Info is the caller-facing view of an active session.
type Info struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	UserAgent  string
	IP         string
	IsCurrent  bool
}

// Current identifies the caller's own session for List. Either field may be empty.
type Current struct {
	RefreshSecret string
	SessionID     string
}

// NewService constructs a Service. A nil hasher hashes refresh secrets with plain SHA-256.
func NewService(cfg Config, store Store, tokens AccessTokenManager, hasher *token.Hasher) *Service {
	if hasher == nil {
		hasher = &token.Hasher{}
	}
	return &Service{cfg: cfg, store: store, tokens: tokens, hasher: hasher}
}

// Config returns the session configuration.
func (s *Service) Config() Config { return s.cfg }

// maxSecretLen bounds presented secrets before hashing.
const maxSecretLen = 4096

func (s *Service) hashPresented(secret string) (string, bool) {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > maxSecretLen {
		return "", false
	}
	return s.hasher.Hash(secret), true
}

func (s *Service) newRow(now time.Time, userID string, dev DeviceContext) (NewRow, string, error) {
	plain, err := token.NewRefreshSecret(s.cfg.RefreshTokenBytes)
	if err != nil {
		return NewRow{}, "", err
	}
	id, err := ids.New(now)
	if err != nil {
		return NewRow{}, "", err
	}
	return NewRow{
		ID:          id,
		UserID:      userID,
		RefreshHash: s.hasher.Hash(plain),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.RefreshTTL),
		Device:      dev,
	}, plain, nil
}

// IssueSession creates a new session and returns fresh tokens.
//
// The refresh secret is returned exactly once and never persisted in plaintext.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	row, plain, err := s.newRow(now, userID, dev)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.Create(ctx, row); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(userID, row.ID, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    row.ID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: plain,
		RefreshExp:   row.ExpiresAt,
	}, nil
}

// ValidateAccessToken verifies an access token and ensures the backing session is active.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string, now time.Time) (AccessClaims, error) {
	claims, err := s.tokens.Verify(accessToken, now)
	if err != nil {
		return AccessClaims{}, err
	}

	// Server-authoritative session check to honor revocations.
	row, err := s.store.GetByID(ctx, claims.SessionID)
	if err != nil {
		return AccessClaims{}, err
	}

	if row.UserID != claims.UserID {
		return AccessClaims{}, ErrInvalidToken
	}
	if row.RevokedAt != nil {
		return AccessClaims{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return AccessClaims{}, ErrSessionExpired
	}

	return claims, nil
}

// RotateRefresh exchanges a refresh secret for a new session.
//
// The old row is revoked and linked to its replacement in one atomic step.
// Presenting a secret that was already rotated revokes every session of the
// account (when ReuseDetection is on) and returns ErrRefreshReuseDetected,
// unless the rotation happened within ReuseGrace, which yields ErrRefreshRaced
// and leaves the successor alone.
func (s *Service) RotateRefresh(ctx context.Context, now time.Time, refreshSecret string, dev DeviceContext) (Issued, string, error) {
	presented, ok := s.hashPresented(refreshSecret)
	if !ok {
		return Issued{}, "", ErrSessionNotFound
	}

	next, plain, err := s.newRow(now, "", dev)
	if err != nil {
		return Issued{}, "", err
	}

	old, err := s.store.Rotate(ctx, now, presented, next)
	if err != nil {
		if errors.Is(err, ErrRefreshReuseDetected) && s.withinReuseGrace(old, now) {
			return Issued{}, old.UserID, ErrRefreshRaced
		}
		if errors.Is(err, ErrRefreshReuseDetected) && s.cfg.ReuseDetection && old.UserID != "" {
			if _, rerr := s.store.RevokeAllExcept(ctx, now, old.UserID, ""); rerr != nil {
				return Issued{}, old.UserID, rerr
			}
		}
		return Issued{}, old.UserID, err
	}

	accessToken, accessExp, err := s.tokens.Issue(old.UserID, next.ID, now)
	if err != nil {
		return Issued{}, old.UserID, err
	}

	return Issued{
		SessionID:    next.ID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: plain,
		RefreshExp:   next.ExpiresAt,
	}, old.UserID, nil
}

func (s *Service) withinReuseGrace(old Row, now time.Time) bool {
	if s.cfg.ReuseGrace <= 0 || old.RevokedAt == nil {
		return false
	}
	return now.Sub(*old.RevokedAt) <= s.cfg.ReuseGrace
}

// RevokeByRefresh revokes the session behind a refresh secret (logout).
// Unknown or already revoked secrets are not an error. The row is zero when
// nothing matched, and revoked is true only when this call did the revoking.
func (s *Service) RevokeByRefresh(ctx context.Context, now time.Time, refreshSecret string) (row Row, revoked bool, err error) {
	presented, ok := s.hashPresented(refreshSecret)
	if !ok {
		return Row{}, false, nil
	}
	row, revoked, err = s.store.RevokeByHash(ctx, now, presented)
	if errors.Is(err, ErrSessionNotFound) {
		return Row{}, false, nil
	}
	return row, revoked, err
}

// RevokeSession revokes sessionID on behalf of userID.
// Unknown ids and sessions of other accounts both yield ErrSessionNotOwned.
func (s *Service) RevokeSession(ctx context.Context, now time.Time, userID, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if !ids.Valid(sessionID) {
		return ErrSessionNotOwned
	}
	return s.store.RevokeOwned(ctx, now, userID, sessionID)
}

// RevokeAll revokes every session of userID except the one holding exceptSecret.
// An empty, unknown or foreign exceptSecret spares nothing.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID, exceptSecret string) (int64, error) {
	except := ""
	if presented, ok := s.hashPresented(exceptSecret); ok {
		row, err := s.store.GetByRefreshHash(ctx, presented)
		switch {
		case err == nil && row.UserID == userID && row.Active(now):
			except = row.ID
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			return 0, err
		}
	}
	return s.store.RevokeAllExcept(ctx, now, userID, except)
}

// RevokeAllExceptSession is RevokeAll keyed by session id, for callers that
// hold an access token rather than the refresh secret.
func (s *Service) RevokeAllExceptSession(ctx context.Context, now time.Time, userID, sessionID string) (int64, error) {
	return s.store.RevokeAllExcept(ctx, now, userID, strings.TrimSpace(sessionID))
}

// List returns the active sessions of userID, newest first, flagging the caller's own.
func (s *Service) List(ctx context.Context, now time.Time, userID string, current Current) ([]Info, error) {
	rows, err := s.store.ListActive(ctx, now, userID)
	if err != nil {
		return nil, err
	}

	currentHash, haveHash := s.hashPresented(current.RefreshSecret)

	out := make([]Info, 0, len(rows))
	for _, r := range rows {
		isCurrent := (current.SessionID != "" && r.ID == current.SessionID) ||
			(haveHash && token.EqualHex64(r.RefreshTokenHash, currentHash))
		out = append(out, Info{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			LastUsedAt: r.LastUsedAt,
			ExpiresAt:  r.ExpiresAt,
			UserAgent:  r.UserAgent,
			IP:         r.IP,
			IsCurrent:  isCurrent,
		})
	}
	return out, nil
}
