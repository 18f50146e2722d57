package identity

import (
	"errors"
	"fmt"
)

// Error kinds. API handlers map these to status codes, so their text is stable.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrNotActive    = errors.New("not_active")
)

// Error is returned by every Store method. Field names the violated unique
// column for conflicts ("email"); Msg never carries credential material.
type Error struct {
	Op    string
	Kind  error
	Field string
	Msg   string
}

func (e Error) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Field != "" {
		s += ": " + e.Field
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e Error) Unwrap() error { return e.Kind }

func opError(op string, kind error, msg string) error {
	return Error{Op: op, Kind: kind, Msg: msg}
}

func conflictOn(op, field string) error {
	return Error{Op: op, Kind: ErrConflict, Field: field}
}

func accountNotFound(op string) error {
	return Error{Op: op, Kind: ErrNotFound, Msg: "account"}
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsNotActive(err error) bool { return errors.Is(err, ErrNotActive) }

// ConflictField returns the unique field behind a conflict, or "".
func ConflictField(err error) string {
	var e Error
	if errors.As(err, &e) && errors.Is(e.Kind, ErrConflict) {
		return e.Field
	}
	return ""
}
