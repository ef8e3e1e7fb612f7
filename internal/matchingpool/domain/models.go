package domain

import (
	"time"
)

// SchemaVersion is written into every persisted ledger document.
const SchemaVersion = 1

// Entry is one sadaqah-coin allocation waiting for, or claimed by, a business
// sponsor. Matched is a one-way transition; once set, the MatchedBy* fields and
// MatchedAt never change.
type Entry struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	UserName              string     `json:"userName"`
	DonationID            string     `json:"donationId"`
	SadaqahCoinsAmount    int64      `json:"sadaqahCoinsAmount"`
	JannahPointsSource    int64      `json:"jannahPointsSource"`
	CreatedAt             time.Time  `json:"createdAt"`
	Matched               bool       `json:"matched"`
	MatchedByBusinessID   string     `json:"matchedByBusinessId,omitempty"`
	MatchedByBusinessName string     `json:"matchedByBusinessName,omitempty"`
	MatchedAt             *time.Time `json:"matchedAt,omitempty"`
	CampaignID            string     `json:"campaignId,omitempty"`
	CampaignName          string     `json:"campaignName,omitempty"`
}

// AppendRequest carries the caller-supplied part of a new entry.
type AppendRequest struct {
	UserID             string `json:"user_id"`
	UserName           string `json:"user_name"`
	DonationID         string `json:"donation_id"`
	SadaqahCoinsAmount int64  `json:"sadaqah_coins_amount"`
	JannahPointsSource int64  `json:"jannah_points_source"`
	CampaignID         string `json:"campaign_id"`
	CampaignName       string `json:"campaign_name"`
}

// MatchRequest identifies the business claiming an entry.
type MatchRequest struct {
	BusinessID   string `json:"business_id"`
	BusinessName string `json:"business_name"`
}

// Summary aggregates the pool for dashboards.
type Summary struct {
	Entries        int   `json:"entries"`
	MatchedEntries int   `json:"matched_entries"`
	UnmatchedTotal int64 `json:"unmatched_total"`
	MatchedTotal   int64 `json:"matched_total"`
	Total          int64 `json:"total"`
}

// UserSummary aggregates one donor's pool contributions.
type UserSummary struct {
	UserID         string  `json:"user_id"`
	UnmatchedTotal int64   `json:"unmatched_total"`
	MatchedTotal   int64   `json:"matched_total"`
	Entries        []Entry `json:"entries"`
}
