package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() donationdomain.Repository {
	return &repo{}
}

func (r *repo) InsertDonation(ctx context.Context, db *gorm.DB, d *donationdomain.Donation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO donations (id, user_id, user_name, amount_cents, currency, jannah_points, sadaqah_coins, pool_entry_id, campaign_id, campaign_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.UserID,
		d.UserName,
		d.AmountCents,
		d.Currency,
		d.JannahPoints,
		d.SadaqahCoins,
		d.PoolEntryID,
		d.CampaignID,
		d.CampaignName,
		d.CreatedAt,
	).Error
}

func (r *repo) DeleteDonation(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM donations WHERE id = ?`, id).Error
}

func (r *repo) SetPoolEntry(ctx context.Context, db *gorm.DB, id snowflake.ID, entryID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE donations SET pool_entry_id = ? WHERE id = ?`,
		entryID,
		id,
	).Error
}

// ApplyBalance upserts the donor row and adds delta to its counters. The
// name is refreshed so the leaderboard shows the latest display name.
func (r *repo) ApplyBalance(ctx context.Context, db *gorm.DB, delta donationdomain.BalanceDelta) error {
	row := donationdomain.DonorBalance{
		UserID:        delta.UserID,
		UserName:      delta.UserName,
		JannahPoints:  delta.JannahPoints,
		SadaqahCoins:  delta.SadaqahCoins,
		DonationCount: delta.Donations,
		TotalCents:    delta.Cents,
		UpdatedAt:     delta.At,
	}
	updates := map[string]interface{}{
		"jannah_points":  gorm.Expr("donor_balances.jannah_points + ?", delta.JannahPoints),
		"sadaqah_coins":  gorm.Expr("donor_balances.sadaqah_coins + ?", delta.SadaqahCoins),
		"donation_count": gorm.Expr("donor_balances.donation_count + ?", delta.Donations),
		"total_cents":    gorm.Expr("donor_balances.total_cents + ?", delta.Cents),
		"updated_at":     delta.At,
	}
	if delta.UserName != "" {
		updates["user_name"] = delta.UserName
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, userID string) (*donationdomain.DonorBalance, error) {
	var balance donationdomain.DonorBalance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, user_name, jannah_points, sadaqah_coins, donation_count, total_cents, updated_at
		 FROM donor_balances WHERE user_id = ?`,
		userID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.UserID == "" {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) ListDonations(ctx context.Context, db *gorm.DB, userID string, beforeID *snowflake.ID, limit int) ([]donationdomain.Donation, error) {
	query := db.WithContext(ctx).
		Model(&donationdomain.Donation{}).
		Where("user_id = ?", userID)
	if beforeID != nil {
		query = query.Where("id < ?", *beforeID)
	}

	var donations []donationdomain.Donation
	err := query.Order("id DESC").Limit(limit).Find(&donations).Error
	if err != nil {
		return nil, err
	}
	return donations, nil
}

func (r *repo) TopBalances(ctx context.Context, db *gorm.DB, limit int) ([]donationdomain.DonorBalance, error) {
	var balances []donationdomain.DonorBalance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, user_name, jannah_points, sadaqah_coins, donation_count, total_cents, updated_at
		 FROM donor_balances
		 ORDER BY jannah_points DESC, user_id ASC
		 LIMIT ?`,
		limit,
	).Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}
