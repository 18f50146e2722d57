package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envOverlay writes VAULT_* variables over a Config in place. Unset or blank
// variables leave the field alone; malformed ones are collected and reported
// together by err.
type envOverlay struct {
	errs []error
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (o *envOverlay) fail(key, v, want string) {
	o.errs = append(o.errs, fmt.Errorf("%s=%q: want %s", key, v, want))
}

func (o *envOverlay) str(key string, dst *string) {
	if v, ok := lookupEnv(key); ok {
		*dst = v
	}
}

func (o *envOverlay) boolean(key string, dst *bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		o.fail(key, v, "a boolean")
		return
	}
	*dst = b
}

func (o *envOverlay) positive(key string, dst *int) {
	v, ok := lookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		o.fail(key, v, "a positive integer")
		return
	}
	*dst = n
}

func (o *envOverlay) conns(key string, dst *int32) {
	v, ok := lookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		o.fail(key, v, "a non-negative integer")
		return
	}
	*dst = int32(n)
}

func (o *envOverlay) duration(key string, dst *time.Duration) {
	v, ok := lookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		o.fail(key, v, "a positive duration such as 15s")
		return
	}
	*dst = d
}

// list splits a comma-separated value and drops blank entries.
func (o *envOverlay) list(key string, dst *[]string) {
	v, ok := lookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (o *envOverlay) err() error {
	if len(o.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, errors.Join(o.errs...))
}
