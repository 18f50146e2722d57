package audit

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/identity/ids"
	"vaultauth/cmd/internal/migrations"
	"vaultauth/cmd/security/keywrap"
)

func TestPostgresSink_WriteAndList(t *testing.T) {
	raw := strings.TrimSpace(os.Getenv("VAULT_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: VAULT_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil && os.Getenv("CI") == "" {
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}

	id, err := ids.New(time.Now())
	require.NoError(t, err)
	schema := "vault_it_" + strings.ToLower(id)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	require.NoError(t, migrations.Up(ctx, raw, schema))

	accounts, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)

	kek, err := keywrap.NewKey()
	require.NoError(t, err)
	wrapped, err := keywrap.Wrap(kek, bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	acc, err := accounts.CreateAccount(ctx, identity.CreateAccountInput{
		Email:    "audit@example.com",
		Verifier: "pbkdf2_sha512$600000$c2FsdHNhbHRzYWx0c2FsdA==$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g=",
		Keys:     identity.KeyEnvelope{SaltForKEK: bytes.Repeat([]byte{1}, 16), WrappedVK: wrapped},
	})
	require.NoError(t, err)

	sink := NewPostgresSink(pool, schema)
	r := NewRecorder(sink, discardLogger())

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		r = NewRecorder(sink, discardLogger(), WithRecorderClock(func() time.Time { return at }))
		r.Record(ctx, Event{
			AccountID: acc.ID,
			Action:    ActionLoginFailure,
			Outcome:   OutcomeFailure,
			ActorIP:   "192.0.2.1",
			Details:   map[string]string{"reason": "bad_password", "password": "leak"},
		})
	}
	r.Record(ctx, Event{Action: ActionLoginFailure, Details: map[string]string{"reason": "unknown_email"}})
	require.Zero(t, r.Failures())

	p, err := sink.List(ctx, acc.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Total)
	require.Len(t, p.Items, 2)
	assert.True(t, p.Items[0].Timestamp.After(p.Items[1].Timestamp))
	assert.Equal(t, map[string]string{"reason": "bad_password"}, p.Items[0].Details)
	assert.Equal(t, "192.0.2.1", p.Items[0].ActorIP)

	p, err = sink.List(ctx, acc.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, p.Items, 1)
}
