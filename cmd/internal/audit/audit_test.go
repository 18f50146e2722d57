package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingFailures struct {
	mu sync.Mutex
	n  int
}

func (c *countingFailures) AuditFailed() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingFailures) AuditDropped() { c.AuditFailed() }

func (c *countingFailures) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSanitizeDetails(t *testing.T) {
	in := map[string]string{
		"reason":   "bad_password",
		"password": "hunter2",
		"secret":   "JBSWY3DPEHPK3PXP",
	}
	got := SanitizeDetails(ActionLoginFailure, in)
	assert.Equal(t, map[string]string{"reason": "bad_password"}, got)

	assert.Nil(t, SanitizeDetails(ActionLogout, map[string]string{"refreshToken": "x"}))
	assert.Nil(t, SanitizeDetails(Action("UNKNOWN"), map[string]string{"reason": "x"}))

	long := SanitizeDetails(ActionLoginFailure, map[string]string{"reason": strings.Repeat("é", 300)})
	assert.LessOrEqual(t, len(long["reason"]), MaxDetailValueLen)
	assert.True(t, strings.HasPrefix(strings.Repeat("é", 300), long["reason"]), "truncation keeps whole runes")
}

func TestRecorder_FillsDefaults(t *testing.T) {
	sink := NewMemorySink()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRecorder(sink, discardLogger(), WithRecorderClock(func() time.Time { return at }))

	r.Record(context.Background(), Event{
		Action:  ActionLoginFailure,
		Details: map[string]string{"reason": "bad_password", "password": "nope"},
	})

	events := sink.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.Len(t, e.ID, 26)
	assert.Equal(t, at, e.Timestamp)
	assert.Equal(t, UnknownIP, e.ActorIP)
	assert.Equal(t, OutcomeFailure, e.Outcome, "unset outcome is recorded as a failure")
	assert.Equal(t, map[string]string{"reason": "bad_password"}, e.Details)
}

func TestRecorder_LogsAndContinues(t *testing.T) {
	var logs bytes.Buffer
	counter := &countingFailures{}
	boom := SinkFunc(func(context.Context, Event) error { return errors.New("disk full") })

	r := NewRecorder(boom, slog.New(slog.NewJSONHandler(&logs, nil)), WithFailureCounter(counter))

	assert.NotPanics(t, func() {
		r.Record(context.Background(), Event{Action: ActionLogout, Outcome: OutcomeSuccess, AccountID: "acc"})
	})
	assert.Equal(t, uint64(1), r.Failures())
	assert.Equal(t, 1, counter.count())
	assert.Contains(t, logs.String(), "audit.record.fail")
	assert.Contains(t, logs.String(), "disk full")
}

func TestRecorder_WritesAfterCallerCancels(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Record(ctx, Event{Action: ActionTokenRefresh, Outcome: OutcomeSuccess})
	assert.Len(t, sink.Events(), 1)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), Event{Action: ActionLogout})
	assert.Zero(t, r.Failures())
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(NewJSONWriterSink(&buf), discardLogger())

	r.Record(context.Background(), Event{Action: ActionRegister, Outcome: OutcomeSuccess, AccountID: "a1", ActorIP: "198.51.100.4"})
	r.Record(context.Background(), Event{Action: ActionLogout, Outcome: OutcomeSuccess, AccountID: "a1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "REGISTER", first["action"])
	assert.Equal(t, "success", first["outcome"])
	assert.Equal(t, "198.51.100.4", first["actorIp"])
	assert.Equal(t, "a1", first["accountId"])
}

func TestMultiSink_ReturnsFirstError(t *testing.T) {
	mem := NewMemorySink()
	boom := errors.New("boom")
	m := MultiSink{SinkFunc(func(context.Context, Event) error { return boom }), mem}

	err := m.Write(context.Background(), Event{Action: ActionLogout})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.Events(), 1, "later sinks still receive the event")
}

func TestMemorySink_ListPaging(t *testing.T) {
	sink := NewMemorySink()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, sink.Write(context.Background(), Event{
			ID:        string(rune('A' + i)),
			AccountID: "mine",
			Action:    ActionLoginSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, sink.Write(context.Background(), Event{ID: "z", AccountID: "other", Timestamp: base}))

	p, err := sink.List(context.Background(), "mine", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, int64(25), p.Total)
	require.Len(t, p.Items, 20)
	assert.Equal(t, base.Add(24*time.Minute), p.Items[0].Timestamp, "newest first")

	p, err = sink.List(context.Background(), "mine", 2, 20)
	require.NoError(t, err)
	assert.Len(t, p.Items, 5)

	p, err = sink.List(context.Background(), "mine", 9, 20)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)

	for _, bad := range [][2]int{{-1, 10}, {1, 101}, {1, -5}} {
		_, err = sink.List(context.Background(), "mine", bad[0], bad[1])
		assert.ErrorIs(t, err, ErrInvalidPage)
	}
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	mem := NewMemorySink()
	d := NewDispatcher(DispatcherConfig{BufferSize: 64}, mem, discardLogger(), nil, nil)

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Write(context.Background(), Event{Action: ActionTokenRefresh}))
	}
	d.Close()

	assert.Len(t, mem.Events(), 50)
	assert.ErrorIs(t, d.Write(context.Background(), Event{}), ErrDispatcherClosed)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocked := SinkFunc(func(context.Context, Event) error {
		<-release
		return nil
	})
	drops := &countingFailures{}
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, blocked, discardLogger(), drops, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Write(context.Background(), Event{Action: ActionLogout}))
	}
	close(release)
	d.Close()

	assert.GreaterOrEqual(t, d.Dropped(), uint64(8))
	assert.Equal(t, int(d.Dropped()), drops.count())
}

func TestDispatcher_SinkErrorsAreCounted(t *testing.T) {
	failures := &countingFailures{}
	boom := SinkFunc(func(context.Context, Event) error { return errors.New("boom") })
	d := NewDispatcher(DispatcherConfig{BufferSize: 4}, boom, discardLogger(), nil, failures)

	require.NoError(t, d.Write(context.Background(), Event{Action: ActionLogout}))
	d.Close()

	assert.Equal(t, 1, failures.count())
}
