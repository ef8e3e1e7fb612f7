package domain

import (
	"context"
	"time"
)

type Service interface {
	Append(ctx context.Context, req AppendRequest) (*Entry, error)
	Match(ctx context.Context, entryID, businessID, businessName string) (bool, error)
	Get(ctx context.Context, entryID string) (*Entry, error)
	UnmatchedTotal(ctx context.Context) (int64, error)
	MatchedTotal(ctx context.Context) (int64, error)
	UserUnmatchedTotal(ctx context.Context, userID string) (int64, error)
	UserSummary(ctx context.Context, userID string) (*UserSummary, error)
	RecentMatches(ctx context.Context, limit int) ([]Entry, error)
	Summary(ctx context.Context) (*Summary, error)
}

// Locker serialises ledger writers across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}
