package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/smallbiznis/sadaqah/pkg/db/pagination"
)

// Donation is one completed gift and the rewards it earned.
type Donation struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID       string       `json:"user_id" gorm:"type:varchar(64);not null;index:idx_donations_user_id"`
	UserName     string       `json:"user_name" gorm:"type:text;not null;default:''"`
	AmountCents  int64        `json:"amount_cents" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:varchar(3);not null"`
	JannahPoints int64        `json:"jannah_points" gorm:"not null"`
	SadaqahCoins int64        `json:"sadaqah_coins" gorm:"not null"`
	PoolEntryID  string       `json:"pool_entry_id,omitempty" gorm:"type:varchar(32);not null;default:''"`
	CampaignID   string       `json:"campaign_id,omitempty" gorm:"type:varchar(64);not null;default:''"`
	CampaignName string       `json:"campaign_name,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Donation) TableName() string { return "donations" }

// DonorBalance is the running reward total for one donor.
type DonorBalance struct {
	UserID        string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	UserName      string    `json:"user_name" gorm:"type:text;not null;default:''"`
	JannahPoints  int64     `json:"jannah_points" gorm:"not null;default:0;index:idx_donor_balances_points"`
	SadaqahCoins  int64     `json:"sadaqah_coins" gorm:"not null;default:0"`
	DonationCount int64     `json:"donation_count" gorm:"not null;default:0"`
	TotalCents    int64     `json:"total_cents" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (DonorBalance) TableName() string { return "donor_balances" }

type RecordRequest struct {
	UserID           string `json:"user_id"`
	UserName         string `json:"user_name"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	ContributeToPool bool   `json:"contribute_to_pool"`
	CampaignID       string `json:"campaign_id"`
	CampaignName     string `json:"campaign_name"`
}

type RecordResult struct {
	Donation  Donation            `json:"donation"`
	Balance   DonorBalance        `json:"balance"`
	League    tierdomain.Standing `json:"league"`
	Rank      tierdomain.Standing `json:"rank"`
	PoolEntry *pooldomain.Entry   `json:"pool_entry,omitempty"`
}

type Standing struct {
	Balance DonorBalance        `json:"balance"`
	League  tierdomain.Standing `json:"league"`
	Rank    tierdomain.Standing `json:"rank"`
}

type HistoryRequest struct {
	UserID string
	pagination.Pagination
}

type HistoryPage struct {
	Donations []Donation          `json:"donations"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type LeaderboardEntry struct {
	Position     int    `json:"position"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	JannahPoints int64  `json:"jannah_points"`
	League       string `json:"league"`
	Rank         string `json:"rank"`
}
