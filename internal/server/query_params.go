package server

import (
	"errors"
	"strconv"
	"strings"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

var errInvalidLimit = errors.New("invalid_limit")

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimit reads a list limit, defaulting when absent. Values outside
// [1, maxListLimit] are rejected rather than clamped.
func parseLimit(value string) (int, error) {
	parsed, err := parseOptionalInt64(value)
	if err != nil {
		return 0, errInvalidLimit
	}
	if parsed == nil {
		return defaultListLimit, nil
	}
	if *parsed <= 0 || *parsed > maxListLimit {
		return 0, errInvalidLimit
	}
	return int(*parsed), nil
}
