package ids

import (
	"testing"
	"time"
)

func TestNew_SortsWithinOneMillisecond(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := ""
	for i := 0; i < 100; i++ {
		id, err := New(now)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if len(id) != 26 || !Valid(id) {
			t.Fatalf("malformed id %q", id)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"01ARZ3NDEKTSV4RRFFQ69G5FAV": true,
		"":                           false,
		"not-a-ulid":                 false,
		"01HNOTEXISTINGSESSIONIDXXX": false,
		"01ARZ3NDEKTSV4RRFFQ69G5FA":  false,
	}
	for in, want := range cases {
		if got := Valid(in); got != want {
			t.Fatalf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}
