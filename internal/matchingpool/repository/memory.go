package repository

import (
	"context"
	"sync"

	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
)

// MemoryStore keeps the ledger in process memory. It is used by tests and
// by single-instance development runs.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	version uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith seeds the store with an existing document.
func NewMemoryStoreWith(data []byte) *MemoryStore {
	s := &MemoryStore{}
	if data != nil {
		s.data = append([]byte(nil), data...)
		s.version = 1
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.LoadVersion(ctx)
	return data, err
}

func (s *MemoryStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.version++
	return nil
}

func (s *MemoryStore) LoadVersion(ctx context.Context) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, 0, nil
	}
	return append([]byte(nil), s.data...), s.version, nil
}

func (s *MemoryStore) CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != expected {
		return 0, pooldomain.ErrVersionConflict
	}
	s.data = append([]byte(nil), data...)
	s.version++
	return s.version, nil
}
