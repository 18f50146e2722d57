package audit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPage is returned for out-of-range paging input.
var ErrInvalidPage = errors.New("invalid page or limit")

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Lister pages through one account's events, newest first.
type Lister interface {
	List(ctx context.Context, accountID string, page, limit int) (Page, error)
}

// Page is one page of events.
type Page struct {
	Items []Event `json:"items"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Total int64   `json:"total"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizePage applies defaults (page 1, limit 20) and bounds (limit 1..100).
// Zero values mean "default"; negative values and limits above MaxLimit are rejected.
func NormalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 || limit < 1 || limit > MaxLimit {
		return 0, 0, ErrInvalidPage
	}
	return page, limit, nil
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Write(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// writeTimeout bounds a single sink write that runs detached from the request.
const writeTimeout = 5 * time.Second
