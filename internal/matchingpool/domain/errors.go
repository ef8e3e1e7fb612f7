package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStorageUnavailable = errors.New("storage_unavailable")
	ErrVersionConflict    = errors.New("version_conflict")
	ErrLedgerContention   = errors.New("ledger_contention")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidDonation    = errors.New("invalid_donation")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidBusiness    = errors.New("invalid_business")
	ErrInvalidEntryID     = errors.New("invalid_entry_id")
	ErrInvalidLimit       = errors.New("invalid_limit")
	ErrNotFound           = errors.New("not_found")
)

// StorageError wraps a persistence failure. It matches ErrStorageUnavailable
// under errors.Is and unwraps to the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: ledger %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// DecodeError reports a persisted ledger that cannot be read back safely.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode ledger: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode ledger: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a caller input error.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidDonation),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidBusiness),
		errors.Is(err, ErrInvalidEntryID),
		errors.Is(err, ErrInvalidLimit):
		return true
	default:
		return false
	}
}
