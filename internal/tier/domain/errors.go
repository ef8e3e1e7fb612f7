package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPoints = errors.New("invalid_points")
	ErrUnknownKind   = errors.New("unknown_tier_kind")
)

// ConfigurationError reports a tier table that violates the contiguity rules.
// It is not recoverable at runtime.
type ConfigurationError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("tier configuration: %s", e.Reason)
	}
	return fmt.Sprintf("tier configuration (%s): %s", e.Kind, e.Reason)
}

func configError(kind Kind, format string, args ...any) error {
	return &ConfigurationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
