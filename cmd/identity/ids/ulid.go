// Package ids mints the identifiers used for accounts, sessions and audit
// events. All three are ULIDs so rows sort by creation time.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a 26-char ULID stamped with now (or the current time when zero).
// IDs minted within the same millisecond stay strictly increasing.
func New(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	mu.Unlock()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Valid reports whether s is a canonical ULID. Path parameters are checked
// with it before any store lookup.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
