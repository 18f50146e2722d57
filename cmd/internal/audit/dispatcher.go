package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrDispatcherClosed is returned by Write after Close.
var ErrDispatcherClosed = errors.New("audit dispatcher closed")

// DropCounter is notified of every event dropped on a full queue.
type DropCounter interface {
	AuditDropped()
}

// DispatcherConfig controls buffering.
type DispatcherConfig struct {
	BufferSize int
	// DropIfFull makes Write non-blocking: a full queue drops the event.
	DropIfFull bool
}

// Dispatcher is a Sink that forwards events to another Sink on a background goroutine.
type Dispatcher struct {
	cfg      DispatcherConfig
	sink     Sink
	log      *slog.Logger
	counter  DropCounter
	onFailed FailureCounter

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the forwarding goroutine. Close must be called to drain it.
func NewDispatcher(cfg DispatcherConfig, sink Sink, log *slog.Logger, drops DropCounter, failures FailureCounter) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = Discard
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		log:      log,
		counter:  drops,
		onFailed: failures,
		ch:       make(chan Event, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case e := <-d.ch:
			d.forward(e)
		case <-d.done:
			for {
				select {
				case e := <-d.ch:
					d.forward(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) forward(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, e); err != nil {
		if d.onFailed != nil {
			d.onFailed.AuditFailed()
		}
		d.log.Error("audit.dispatch.fail", "err", err, "action", string(e.Action))
	}
}

// Write enqueues e. With DropIfFull a full queue drops e and returns nil;
// otherwise Write blocks until there is room or ctx is done.
func (d *Dispatcher) Write(ctx context.Context, e Event) error {
	if d == nil || d.closed.Load() {
		return ErrDispatcherClosed
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- e:
		case <-d.done:
			return ErrDispatcherClosed
		default:
			d.dropped.Add(1)
			if d.counter != nil {
				d.counter.AuditDropped()
			}
		}
		return nil
	}

	select {
	case d.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDispatcherClosed
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many events were dropped on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
