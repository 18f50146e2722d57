package audit

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps events in process. It implements Sink and Lister.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, cloneEvent(e))
	return nil
}

// Events returns a copy of everything written, oldest first.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	for i, e := range s.events {
		out[i] = cloneEvent(e)
	}
	return out
}

func (s *MemorySink) List(_ context.Context, accountID string, page, limit int) (Page, error) {
	page, limit, err := NormalizePage(page, limit)
	if err != nil {
		return Page{}, err
	}

	s.mu.RLock()
	var mine []Event
	for _, e := range s.events {
		if e.AccountID == accountID {
			mine = append(mine, cloneEvent(e))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(mine, func(i, j int) bool {
		if mine[i].Timestamp.Equal(mine[j].Timestamp) {
			return mine[i].ID > mine[j].ID
		}
		return mine[i].Timestamp.After(mine[j].Timestamp)
	})

	out := Page{Items: []Event{}, Page: page, Limit: limit, Total: int64(len(mine))}
	start := (page - 1) * limit
	if start >= len(mine) {
		return out, nil
	}
	end := min(start+limit, len(mine))
	out.Items = mine[start:end]
	return out, nil
}

func cloneEvent(e Event) Event {
	if e.Details != nil {
		d := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			d[k] = v
		}
		e.Details = d
	}
	return e
}
