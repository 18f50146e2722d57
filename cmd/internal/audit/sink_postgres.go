package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink stores events in <schema>.audit_log. It implements Sink and Lister.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink returns a sink over pool. An empty schema means "vault".
func NewPostgresSink(pool *pgxpool.Pool, schema string) *PostgresSink {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "vault"
	}
	return &PostgresSink{
		pool:  pool,
		table: pgx.Identifier{schema, "audit_log"}.Sanitize(),
	}
}

func (s *PostgresSink) Write(ctx context.Context, e Event) error {
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, account_id, action, outcome, actor_ip, user_agent, session_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	`, e.ID, nullIfEmpty(e.AccountID), string(e.Action), string(e.Outcome), e.ActorIP,
		nullIfEmpty(e.UserAgent), nullIfEmpty(e.SessionID), string(raw), e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresSink) List(ctx context.Context, accountID string, page, limit int) (Page, error) {
	page, limit, err := NormalizePage(page, limit)
	if err != nil {
		return Page{}, err
	}

	out := Page{Items: []Event{}, Page: page, Limit: limit}

	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+s.table+` WHERE account_id = $1`, accountID,
	).Scan(&out.Total); err != nil {
		return Page{}, fmt.Errorf("count audit events: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(account_id, ''), action, outcome, actor_ip,
		       COALESCE(user_agent, ''), COALESCE(session_id, ''), details, created_at
		FROM `+s.table+`
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       Event
			action  string
			outcome string
			raw     []byte
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &action, &outcome, &e.ActorIP,
			&e.UserAgent, &e.SessionID, &raw, &e.Timestamp); err != nil {
			return Page{}, err
		}
		e.Action, e.Outcome = Action(action), Outcome(outcome)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return Page{}, fmt.Errorf("decode details: %w", err)
			}
			if len(e.Details) == 0 {
				e.Details = nil
			}
		}
		e.Timestamp = e.Timestamp.UTC()
		out.Items = append(out.Items, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
