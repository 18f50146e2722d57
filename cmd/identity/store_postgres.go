package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultauth/cmd/identity/ids"
	"vaultauth/cmd/security/keywrap"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Two-factor transitions are conditional UPDATEs, so concurrent enable/disable
//   calls cannot both succeed.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the account store (default "vault").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vault",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `
	id, email, email_norm, verifier,
	kek_salt, vk_ciphertext, vk_iv, vk_tag,
	tfa_enabled,
	tfa_client_ciphertext, tfa_client_iv, tfa_client_tag,
	tfa_server_ciphertext, tfa_server_iv, tfa_server_tag,
	tfa_enabled_at, created_at, updated_at`

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if s == nil || s.pool == nil {
		return Account{}, opError(op, ErrInvalidInput, "nil store")
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	in, err := validateCreate(op, in)
	if err != nil {
		return Account{}, err
	}

	id, err := ids.New(in.Now)
	if err != nil {
		return Account{}, err
	}

	accounts := pgIdent(s.schema, "accounts")

	row := s.pool.QueryRow(ctx,
		`INSERT INTO `+accounts+` (
		     id, email, email_norm, verifier,
		     kek_salt, vk_ciphertext, vk_iv, vk_tag,
		     tfa_enabled, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $9)
		   RETURNING `+accountColumns,
		id,
		in.Email,
		NormalizeEmail(in.Email),
		in.Verifier,
		in.Keys.SaltForKEK,
		in.Keys.WrappedVK.Ciphertext,
		in.Keys.WrappedVK.IV,
		in.Keys.WrappedVK.Tag,
		in.Now,
	)

	acc, err := scanAccount(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, conflictOn(op, field)
		}
		return Account{}, err
	}
	return acc, nil
}

// GetAccountByEmail looks an account up by its normalized email.
func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.GetAccountByEmail"

	accounts := pgIdent(s.schema, "accounts")
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE email_norm = $1`,
		NormalizeEmail(email),
	)

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, accountNotFound(op)
	}
	return acc, err
}

// GetAccountByID looks an account up by id.
func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"

	accounts := pgIdent(s.schema, "accounts")
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE id = $1`,
		strings.TrimSpace(id),
	)

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, accountNotFound(op)
	}
	return acc, err
}

// EnableTwoFactor stores both secret copies iff two-factor is currently disabled.
func (s *PostgresStore) EnableTwoFactor(ctx context.Context, id string, client, server keywrap.Envelope, now time.Time) error {
	const op = "identity.EnableTwoFactor"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	accounts := pgIdent(s.schema, "accounts")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET tfa_enabled = true,
		        tfa_client_ciphertext = $2, tfa_client_iv = $3, tfa_client_tag = $4,
		        tfa_server_ciphertext = $5, tfa_server_iv = $6, tfa_server_tag = $7,
		        tfa_enabled_at = $8, updated_at = $8
		  WHERE id = $1 AND tfa_enabled = false`,
		id,
		client.Ciphertext, client.IV, client.Tag,
		server.Ciphertext, server.IV, server.Tag,
		now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	return s.classifyMiss(ctx, op, id, ErrConflict, "two-factor already enabled")
}

// DisableTwoFactor clears the secrets iff two-factor is currently enabled.
func (s *PostgresStore) DisableTwoFactor(ctx context.Context, id string, now time.Time) error {
	const op = "identity.DisableTwoFactor"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	accounts := pgIdent(s.schema, "accounts")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET tfa_enabled = false,
		        tfa_client_ciphertext = NULL, tfa_client_iv = NULL, tfa_client_tag = NULL,
		        tfa_server_ciphertext = NULL, tfa_server_iv = NULL, tfa_server_tag = NULL,
		        tfa_enabled_at = NULL, updated_at = $2
		  WHERE id = $1 AND tfa_enabled = true`,
		id, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	return s.classifyMiss(ctx, op, id, ErrNotActive, "two-factor not enabled")
}

// classifyMiss distinguishes "no such account" from "wrong state" after a conditional update matched nothing.
func (s *PostgresStore) classifyMiss(ctx context.Context, op, id string, kind error, msg string) error {
	accounts := pgIdent(s.schema, "accounts")

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+accounts+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return accountNotFound(op)
	}
	return opError(op, kind, msg)
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a         Account
		vk        keywrap.Envelope
		client    keywrap.Envelope
		server    keywrap.Envelope
		enabledAt *time.Time
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.EmailNorm, &a.Verifier,
		&a.Keys.SaltForKEK, &vk.Ciphertext, &vk.IV, &vk.Tag,
		&a.TwoFactor.Enabled,
		&client.Ciphertext, &client.IV, &client.Tag,
		&server.Ciphertext, &server.IV, &server.Tag,
		&enabledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	a.Keys.WrappedVK = vk
	a.TwoFactor.EnabledAt = enabledAt
	if a.TwoFactor.Enabled {
		a.TwoFactor.ClientSecret = &client
		a.TwoFactor.ServerSecret = &server
	}
	return a, nil
}

// ---- helpers ----

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch {
	case c == "uq_accounts_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
