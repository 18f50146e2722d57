package twofactor

import (
	"context"
	"sync"
	"time"
)

// ReplayGuard records one-shot keys and short-lived counters.
type ReplayGuard interface {
	// Claim stores key for ttl. It reports false if key was already present.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Count returns the current value of a counter (0 when absent).
	Count(ctx context.Context, key string) (int64, error)

	// Incr increments a counter that expires ttl after its first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// MemoryGuard is a ReplayGuard for a single process.
type MemoryGuard struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]guardEntry
}

type guardEntry struct {
	n   int64
	exp time.Time
}

// NewMemoryGuard returns an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{now: time.Now, entries: make(map[string]guardEntry)}
}

func (g *MemoryGuard) live(key string, now time.Time) (guardEntry, bool) {
	e, ok := g.entries[key]
	if !ok {
		return guardEntry{}, false
	}
	if !now.Before(e.exp) {
		delete(g.entries, key)
		return guardEntry{}, false
	}
	return e, true
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if _, ok := g.live(key, now); ok {
		return false, nil
	}
	g.entries[key] = guardEntry{n: 1, exp: now.Add(ttl)}
	g.sweep(now)
	return true, nil
}

func (g *MemoryGuard) Count(_ context.Context, key string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, _ := g.live(key, g.now())
	return e.n, nil
}

func (g *MemoryGuard) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e, ok := g.live(key, now)
	if !ok {
		e = guardEntry{exp: now.Add(ttl)}
	}
	e.n++
	g.entries[key] = e
	return e.n, nil
}

// sweep drops expired entries once the map grows.
func (g *MemoryGuard) sweep(now time.Time) {
	if len(g.entries) < 4096 {
		return
	}
	for k, e := range g.entries {
		if !now.Before(e.exp) {
			delete(g.entries, k)
		}
	}
}
