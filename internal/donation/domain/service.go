package domain

import "context"

type Service interface {
	RecordDonation(ctx context.Context, req RecordRequest) (*RecordResult, error)
	Standing(ctx context.Context, userID string) (*Standing, error)
	History(ctx context.Context, req HistoryRequest) (*HistoryPage, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
