package domain

import "errors"

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidLimit    = errors.New("invalid_limit")
)

func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrInvalidLimit):
		return true
	default:
		return false
	}
}
