package dispatcher

import (
	"fmt"
	"net/http"
	"strconv"
)

// intParam reads a required non-negative integer query parameter.
func intParam(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// msParam reads an optional millisecond-duration query parameter. Absent
// means "no deadline" (nil); present-and-zero means try-only.
func msParam(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &n, nil
}

// intMsParam reads an optional millisecond-duration parameter, returning 0
// when absent (used for token bucket interval, which defaults to 1000
// inside the primitive itself, so this is really just parse-or-zero).
func intMsParam(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
