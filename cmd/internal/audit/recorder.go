package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"vaultauth/cmd/identity/ids"
)

// FailureCounter is notified of every failed write.
type FailureCounter interface {
	AuditFailed()
}

// Recorder is the entry point for audit events.
type Recorder struct {
	sink     Sink
	log      *slog.Logger
	counter  FailureCounter
	failures atomic.Uint64
	now      func() time.Time
}

type RecorderOption func(*Recorder)

func WithFailureCounter(c FailureCounter) RecorderOption {
	return func(r *Recorder) { r.counter = c }
}

func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder returns a Recorder writing to sink. A nil sink discards events.
func NewRecorder(sink Sink, log *slog.Logger, opts ...RecorderOption) *Recorder {
	if sink == nil {
		sink = Discard
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		sink: sink,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record normalizes e and writes it. Errors are logged and counted, never returned.
// The write is detached from ctx cancellation so an aborted request still leaves a trace.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}

	e = e.normalize(r.now())
	if e.ID == "" {
		id, err := ids.New(e.Timestamp)
		if err != nil {
			r.fail(e, err)
			return
		}
		e.ID = id
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.sink.Write(wctx, e); err != nil {
		r.fail(e, err)
	}
}

// Failures returns how many events could not be written.
func (r *Recorder) Failures() uint64 {
	if r == nil {
		return 0
	}
	return r.failures.Load()
}

func (r *Recorder) fail(e Event, err error) {
	r.failures.Add(1)
	if r.counter != nil {
		r.counter.AuditFailed()
	}
	r.log.Error("audit.record.fail",
		"err", err,
		"action", string(e.Action),
		"outcome", string(e.Outcome),
		"account_id", e.AccountID,
	)
}
