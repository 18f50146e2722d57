package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process. A single mutex serializes every
// mutation, which gives Rotate the same single-winner guarantee as the
// conditional UPDATE in PostgresStore.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Row
	byHash map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Row),
		byHash: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in NewRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(in)
	return nil
}

func (s *MemoryStore) insertLocked(in NewRow) {
	created := in.CreatedAt
	row := &Row{
		ID:               in.ID,
		UserID:           in.UserID,
		RefreshTokenHash: in.RefreshHash,
		CreatedAt:        in.CreatedAt,
		LastUsedAt:       &created,
		ExpiresAt:        in.ExpiresAt,
		UserAgent:        in.Device.UserAgent,
		IP:               in.Device.IP,
	}
	s.byID[row.ID] = row
	s.byHash[row.RefreshTokenHash] = row.ID
}

func (s *MemoryStore) GetByID(ctx context.Context, sessionID string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[sessionID]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return copyRow(row), nil
}

func (s *MemoryStore) GetByRefreshHash(ctx context.Context, refreshHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupLocked(refreshHash)
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return copyRow(row), nil
}

func (s *MemoryStore) lookupLocked(refreshHash string) (*Row, bool) {
	id, ok := s.byHash[refreshHash]
	if !ok {
		return nil, false
	}
	row, ok := s.byID[id]
	return row, ok
}

func (s *MemoryStore) Rotate(ctx context.Context, now time.Time, presentedHash string, next NewRow) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.lookupLocked(presentedHash)
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	if !old.Active(now) {
		return copyRow(old), classifyInactive(*old, now)
	}

	revoked, replacedBy := now, next.ID
	old.RevokedAt = &revoked
	old.LastUsedAt = &revoked
	old.ReplacedBySessionID = &replacedBy

	next.UserID = old.UserID
	s.insertLocked(next)

	return copyRow(old), nil
}

func (s *MemoryStore) RevokeByHash(ctx context.Context, now time.Time, refreshHash string) (Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupLocked(refreshHash)
	if !ok {
		return Row{}, false, ErrSessionNotFound
	}
	if row.RevokedAt != nil {
		return copyRow(row), false, nil
	}
	t := now
	row.RevokedAt = &t
	return copyRow(row), true, nil
}

func (s *MemoryStore) RevokeOwned(ctx context.Context, now time.Time, userID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[sessionID]
	if !ok || row.UserID != userID {
		return ErrSessionNotOwned
	}
	if row.RevokedAt == nil {
		t := now
		row.RevokedAt = &t
	}
	return nil
}

func (s *MemoryStore) RevokeAllExcept(ctx context.Context, now time.Time, userID, exceptSessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.byID {
		if row.UserID != userID || row.ID == exceptSessionID || row.RevokedAt != nil {
			continue
		}
		t := now
		row.RevokedAt = &t
		n++
	}
	return n, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, now time.Time, userID string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Row, 0)
	for _, row := range s.byID {
		if row.UserID == userID && row.Active(now) {
			out = append(out, copyRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyRow(r *Row) Row {
	out := *r
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		out.LastUsedAt = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		out.RevokedAt = &t
	}
	if r.ReplacedBySessionID != nil {
		id := *r.ReplacedBySessionID
		out.ReplacedBySessionID = &id
	}
	return out
}
