package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (<schema>.sessions).
type PostgresStore struct {
	pool     *pgxpool.Pool
	sessions string
}

// NewPostgresStore creates a Postgres-backed session store. An empty schema means "vault".
func NewPostgresStore(pool *pgxpool.Pool, schema string) *PostgresStore {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "vault"
	}
	return &PostgresStore{
		pool:     pool,
		sessions: pgx.Identifier{schema, "sessions"}.Sanitize(),
	}
}

const rowColumns = `
	id, account_id, refresh_token_hash,
	created_at, last_used_at, expires_at, revoked_at,
	replaced_by_session_id, COALESCE(user_agent, ''), COALESCE(ip, '')`

func scanRow(r pgx.Row) (Row, error) {
	var row Row
	err := r.Scan(
		&row.ID,
		&row.UserID,
		&row.RefreshTokenHash,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedBySessionID,
		&row.UserAgent,
		&row.IP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	return row, err
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, in NewRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.sessions+` (
			id, account_id, refresh_token_hash,
			created_at, last_used_at, expires_at, revoked_at,
			replaced_by_session_id, user_agent, ip
		) VALUES ($1, $2, $3, $4, $4, $5, NULL, NULL, $6, $7)
	`, in.ID, in.UserID, in.RefreshHash, in.CreatedAt, in.ExpiresAt,
		nullIfEmpty(in.Device.UserAgent), nullIfEmpty(in.Device.IP))
	return err
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, sessionID string) (Row, error) {
	return scanRow(s.pool.QueryRow(ctx,
		`SELECT `+rowColumns+` FROM `+s.sessions+` WHERE id = $1`, sessionID))
}

// GetByRefreshHash loads a session row by refresh digest.
func (s *PostgresStore) GetByRefreshHash(ctx context.Context, refreshHash string) (Row, error) {
	return scanRow(s.pool.QueryRow(ctx,
		`SELECT `+rowColumns+` FROM `+s.sessions+` WHERE refresh_token_hash = $1`, refreshHash))
}

// Rotate performs the compare-and-swap on revoked_at and inserts the
// replacement inside one transaction. The replaced_by foreign key is
// deferred, so the old row can point at the new id before it exists.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, presentedHash string, next NewRow) (Row, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Row{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRow(tx.QueryRow(ctx, `
		UPDATE `+s.sessions+`
		SET
			revoked_at = $2,
			last_used_at = $2,
			replaced_by_session_id = $3
		WHERE refresh_token_hash = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		RETURNING `+rowColumns,
		presentedHash, now, next.ID))
	if errors.Is(err, ErrSessionNotFound) {
		_ = tx.Rollback(ctx)
		return s.classifyRotateMiss(ctx, now, presentedHash)
	}
	if err != nil {
		return Row{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO `+s.sessions+` (
			id, account_id, refresh_token_hash,
			created_at, last_used_at, expires_at, revoked_at,
			replaced_by_session_id, user_agent, ip
		) VALUES ($1, $2, $3, $4, $4, $5, NULL, NULL, $6, $7)
	`, next.ID, old.UserID, next.RefreshHash, next.CreatedAt, next.ExpiresAt,
		nullIfEmpty(next.Device.UserAgent), nullIfEmpty(next.Device.IP)); err != nil {
		return Row{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return old, nil
}

func (s *PostgresStore) classifyRotateMiss(ctx context.Context, now time.Time, presentedHash string) (Row, error) {
	row, err := s.GetByRefreshHash(ctx, presentedHash)
	if err != nil {
		return Row{}, err
	}
	return row, classifyInactive(row, now)
}

// RevokeByHash revokes the session holding refreshHash. Only the UPDATE
// that flips revoked_at from NULL reports revoked; a repeat falls through
// to a plain lookup.
func (s *PostgresStore) RevokeByHash(ctx context.Context, now time.Time, refreshHash string) (Row, bool, error) {
	row, err := scanRow(s.pool.QueryRow(ctx, `
		UPDATE `+s.sessions+`
		SET revoked_at = $2
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL
		RETURNING `+rowColumns, refreshHash, now))
	if err == nil {
		return row, true, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Row{}, false, err
	}
	row, err = s.GetByRefreshHash(ctx, refreshHash)
	return row, false, err
}

// RevokeOwned revokes a single session if and only if userID owns it.
func (s *PostgresStore) RevokeOwned(ctx context.Context, now time.Time, userID, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.sessions+`
		SET revoked_at = COALESCE(revoked_at, $3)
		WHERE id = $1 AND account_id = $2
	`, sessionID, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotOwned
	}
	return nil
}

// RevokeAllExcept revokes all active sessions for a user except one.
func (s *PostgresStore) RevokeAllExcept(ctx context.Context, now time.Time, userID, exceptSessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.sessions+`
		SET revoked_at = $2
		WHERE account_id = $1
		  AND revoked_at IS NULL
		  AND id <> $3
	`, userID, now, exceptSessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListActive returns unrevoked, unexpired sessions newest first.
func (s *PostgresStore) ListActive(ctx context.Context, now time.Time, userID string) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+rowColumns+`
		FROM `+s.sessions+`
		WHERE account_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		ORDER BY created_at DESC, id DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
