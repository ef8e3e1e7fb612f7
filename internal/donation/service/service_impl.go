package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sadaqah/internal/clock"
	"github.com/smallbiznis/sadaqah/internal/config"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/smallbiznis/sadaqah/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCurrency     = "USD"
	maxLeaderboardLimit = 100
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       donationdomain.Repository
	Tiers      tierdomain.Service
	Pool       pooldomain.Service
	Clock      clock.Clock
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       donationdomain.Repository
	tiers      tierdomain.Service
	pool       pooldomain.Service
	clock      clock.Clock
	rewards    config.RewardsConfig
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) donationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("donation.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		tiers:      p.Tiers,
		pool:       p.Pool,
		clock:      p.Clock,
		rewards:    p.Cfg.Rewards,
		obsMetrics: p.ObsMetrics,
	}
}

// RecordDonation stores the donation, credits the donor and, when asked,
// moves the earned coins into the matching pool. If the pool rejects the
// coins the donation is rolled back and the pool error is returned.
func (s *Service) RecordDonation(ctx context.Context, req donationdomain.RecordRequest) (*donationdomain.RecordResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, donationdomain.ErrInvalidUser
	}
	if req.AmountCents <= 0 {
		return nil, donationdomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		return nil, donationdomain.ErrInvalidCurrency
	}

	units := req.AmountCents / 100
	now := s.clock.Now().UTC()
	donation := donationdomain.Donation{
		ID:           s.genID.Generate(),
		UserID:       userID,
		UserName:     strings.TrimSpace(req.UserName),
		AmountCents:  req.AmountCents,
		Currency:     currency,
		JannahPoints: units * s.rewards.PointsPerUnit,
		SadaqahCoins: units * s.rewards.CoinsPerUnit,
		CampaignID:   strings.TrimSpace(req.CampaignID),
		CampaignName: strings.TrimSpace(req.CampaignName),
		CreatedAt:    now,
	}
	delta := donationdomain.BalanceDelta{
		UserID:       userID,
		UserName:     donation.UserName,
		JannahPoints: donation.JannahPoints,
		SadaqahCoins: donation.SadaqahCoins,
		Donations:    1,
		Cents:        donation.AmountCents,
		At:           now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertDonation(ctx, tx, &donation); err != nil {
			return err
		}
		return s.repo.ApplyBalance(ctx, tx, delta)
	})
	if err != nil {
		return nil, fmt.Errorf("record donation: %w", err)
	}

	// From here the donation is committed. Follow-up work must not depend on
	// the caller staying around.
	committed := context.WithoutCancel(ctx)

	var entry *pooldomain.Entry
	if req.ContributeToPool && donation.SadaqahCoins > 0 {
		entry, err = s.pool.Append(ctx, pooldomain.AppendRequest{
			UserID:             userID,
			UserName:           donation.UserName,
			DonationID:         donation.ID.String(),
			SadaqahCoinsAmount: donation.SadaqahCoins,
			JannahPointsSource: donation.JannahPoints,
			CampaignID:         donation.CampaignID,
			CampaignName:       donation.CampaignName,
		})
		if err != nil {
			s.revert(committed, donation, delta)
			return nil, fmt.Errorf("contribute to matching pool: %w", err)
		}
		donation.PoolEntryID = entry.ID
		if err := s.repo.SetPoolEntry(committed, s.db, donation.ID, entry.ID); err != nil {
			// the coins are already in the pool; the link is informational
			s.log.Warn("failed to link donation to pool entry",
				zap.String("donation_id", donation.ID.String()),
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}

	result := &donationdomain.RecordResult{Donation: donation, PoolEntry: entry}
	standing, err := s.Standing(committed, userID)
	if err != nil {
		// a retry would credit the donor twice; report the donation without placement
		s.log.Warn("standing unavailable after donation",
			zap.String("donation_id", donation.ID.String()),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else {
		result.Balance = standing.Balance
		result.League = standing.League
		result.Rank = standing.Rank
	}

	s.obsMetrics.RecordDonation(committed, currency, result.League.Tier.Name, donation.JannahPoints)
	s.log.Info("donation recorded",
		zap.String("donation_id", donation.ID.String()),
		zap.String("user_id", userID),
		zap.Int64("amount_cents", donation.AmountCents),
		zap.Int64("jannah_points", donation.JannahPoints),
		zap.Int64("sadaqah_coins", donation.SadaqahCoins),
		zap.Bool("pooled", entry != nil),
	)
	return result, nil
}

// revert undoes a committed donation. ctx must not be cancellable.
func (s *Service) revert(ctx context.Context, donation donationdomain.Donation, delta donationdomain.BalanceDelta) {
	reverse := delta
	reverse.UserName = ""
	reverse.JannahPoints = -delta.JannahPoints
	reverse.SadaqahCoins = -delta.SadaqahCoins
	reverse.Donations = -delta.Donations
	reverse.Cents = -delta.Cents

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteDonation(ctx, tx, donation.ID); err != nil {
			return err
		}
		return s.repo.ApplyBalance(ctx, tx, reverse)
	})
	if err != nil {
		s.log.Error("failed to revert donation after pool failure",
			zap.String("donation_id", donation.ID.String()),
			zap.String("user_id", donation.UserID),
			zap.Error(err),
		)
	}
}

// Standing reports a donor's balance with league and rank placement. Donors
// without any donation stand at zero points.
func (s *Service) Standing(ctx context.Context, userID string) (*donationdomain.Standing, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, donationdomain.ErrInvalidUser
	}

	balance, err := s.repo.FindBalance(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = &donationdomain.DonorBalance{UserID: userID}
	}

	league, err := s.tiers.Standing(tierdomain.KindLeague, balance.JannahPoints)
	if err != nil {
		return nil, err
	}
	rank, err := s.tiers.Standing(tierdomain.KindRank, balance.JannahPoints)
	if err != nil {
		return nil, err
	}

	return &donationdomain.Standing{
		Balance: *balance,
		League:  league,
		Rank:    rank,
	}, nil
}

// History pages through a donor's donations, newest first.
func (s *Service) History(ctx context.Context, req donationdomain.HistoryRequest) (*donationdomain.HistoryPage, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, donationdomain.ErrInvalidUser
	}

	var beforeID *snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		beforeID = &id
	}

	limit := req.Size()
	rows, err := s.repo.ListDonations(ctx, s.db, userID, beforeID, limit+1)
	if err != nil {
		return nil, err
	}

	donations, info, err := pagination.Trim(rows, limit, func(d donationdomain.Donation) pagination.Cursor {
		return pagination.Cursor{ID: d.ID.String()}
	})
	if err != nil {
		return nil, err
	}
	if donations == nil {
		donations = []donationdomain.Donation{}
	}
	return &donationdomain.HistoryPage{Donations: donations, PageInfo: info}, nil
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]donationdomain.LeaderboardEntry, error) {
	if limit <= 0 || limit > maxLeaderboardLimit {
		return nil, donationdomain.ErrInvalidLimit
	}

	balances, err := s.repo.TopBalances(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]donationdomain.LeaderboardEntry, 0, len(balances))
	for i, b := range balances {
		league, err := s.tiers.Classify(tierdomain.KindLeague, b.JannahPoints)
		if err != nil {
			return nil, err
		}
		rank, err := s.tiers.Classify(tierdomain.KindRank, b.JannahPoints)
		if err != nil {
			return nil, err
		}
		entries = append(entries, donationdomain.LeaderboardEntry{
			Position:     i + 1,
			UserID:       b.UserID,
			UserName:     b.UserName,
			JannahPoints: b.JannahPoints,
			League:       league.Name,
			Rank:         rank.Name,
		})
	}
	return entries, nil
}
