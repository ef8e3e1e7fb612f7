package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// BalanceDelta is added to a donor's balance row, creating it when absent.
type BalanceDelta struct {
	UserID       string
	UserName     string
	JannahPoints int64
	SadaqahCoins int64
	Donations    int64
	Cents        int64
	At           time.Time
}

type Repository interface {
	InsertDonation(ctx context.Context, db *gorm.DB, d *Donation) error
	DeleteDonation(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetPoolEntry(ctx context.Context, db *gorm.DB, id snowflake.ID, entryID string) error
	ApplyBalance(ctx context.Context, db *gorm.DB, delta BalanceDelta) error
	FindBalance(ctx context.Context, db *gorm.DB, userID string) (*DonorBalance, error)
	ListDonations(ctx context.Context, db *gorm.DB, userID string, beforeID *snowflake.ID, limit int) ([]Donation, error)
	TopBalances(ctx context.Context, db *gorm.DB, limit int) ([]DonorBalance, error)
}
