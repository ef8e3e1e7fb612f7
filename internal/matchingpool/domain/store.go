package domain

import "context"

// Store persists the whole ledger document under a single key. Load returns
// nil data when nothing has been written yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// VersionedStore adds compare-and-swap writes. Version 0 means the key does
// not exist; CompareAndSave returns ErrVersionConflict when the stored version
// differs from expected.
type VersionedStore interface {
	Store
	LoadVersion(ctx context.Context) ([]byte, uint64, error)
	CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error)
}
