package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/sadaqah/internal/clock"
	"github.com/smallbiznis/sadaqah/internal/config"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	"github.com/smallbiznis/sadaqah/internal/donation/repository"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	poolrepository "github.com/smallbiznis/sadaqah/internal/matchingpool/repository"
	poolservice "github.com/smallbiznis/sadaqah/internal/matchingpool/service"
	tierservice "github.com/smallbiznis/sadaqah/internal/tier/service"
	"github.com/smallbiznis/sadaqah/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db   *gorm.DB
	pool pooldomain.Service
	svc  *Service
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&donationdomain.Donation{}, &donationdomain.DonorBalance{}))
	return db
}

func newFixture(t *testing.T, pool pooldomain.Service) *fixture {
	t.Helper()
	db := openTestDB(t)
	clk := clock.NewFakeClock(epoch)
	if pool == nil {
		pool = poolservice.NewService(poolservice.Params{
			Log:     zap.NewNop(),
			Store:   poolrepository.NewMemoryStore(),
			Clock:   clk,
			Options: poolservice.Options{Backend: "memory"},
		})
	}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Tiers: tierservice.New(tierservice.Params{Log: zap.NewNop()}),
		Pool:  pool,
		Clock: clk,
		Cfg: config.Config{
			Rewards: config.RewardsConfig{PointsPerUnit: 10, CoinsPerUnit: 1},
		},
	}).(*Service)
	return &fixture{db: db, pool: pool, svc: svc}
}

type failingPool struct {
	pooldomain.Service
	err error
}

func (p failingPool) Append(context.Context, pooldomain.AppendRequest) (*pooldomain.Entry, error) {
	return nil, p.err
}

func TestRecordDonationCreditsDonorAndPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{
		UserID:           "u1",
		UserName:         "Aisha",
		AmountCents:      15000,
		Currency:         "usd",
		ContributeToPool: true,
		CampaignID:       "ramadan",
		CampaignName:     "Ramadan Iftar",
	})
	require.NoError(t, err)

	assert.Equal(t, "USD", res.Donation.Currency)
	assert.Equal(t, int64(1500), res.Donation.JannahPoints)
	assert.Equal(t, int64(150), res.Donation.SadaqahCoins)
	assert.Equal(t, int64(1500), res.Balance.JannahPoints)
	assert.Equal(t, int64(1), res.Balance.DonationCount)
	assert.Equal(t, "Silver", res.League.Tier.Name)
	assert.Equal(t, "Giver", res.Rank.Tier.Name)

	require.NotNil(t, res.PoolEntry)
	assert.Equal(t, res.Donation.ID.String(), res.PoolEntry.DonationID)
	assert.Equal(t, "ramadan", res.PoolEntry.CampaignID)
	assert.Equal(t, res.PoolEntry.ID, res.Donation.PoolEntryID)

	unmatched, err := f.pool.UserUnmatchedTotal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), unmatched)

	var stored donationdomain.Donation
	require.NoError(t, f.db.First(&stored, "id = ?", res.Donation.ID).Error)
	assert.Equal(t, res.PoolEntry.ID, stored.PoolEntryID)
}

func TestRecordDonationWithoutPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 2500})
	require.NoError(t, err)
	assert.Nil(t, res.PoolEntry)
	assert.Equal(t, "USD", res.Donation.Currency)
	assert.Equal(t, int64(250), res.Donation.JannahPoints)

	summary, err := f.pool.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Entries)
}

func TestRecordDonationAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, cents := range []int64{10000, 20000, 5000} {
		_, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", UserName: "Aisha", AmountCents: cents})
		require.NoError(t, err)
	}

	standing, err := f.svc.Standing(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3500), standing.Balance.JannahPoints)
	assert.Equal(t, int64(350), standing.Balance.SadaqahCoins)
	assert.Equal(t, int64(3), standing.Balance.DonationCount)
	assert.Equal(t, int64(35000), standing.Balance.TotalCents)
	assert.Equal(t, "Aisha", standing.Balance.UserName)
	assert.Equal(t, "Gold", standing.League.Tier.Name)
	assert.Equal(t, "Benefactor", standing.Rank.Tier.Name)
}

func TestRecordDonationRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	cases := []struct {
		name string
		req  donationdomain.RecordRequest
		want error
	}{
		{name: "blank user", req: donationdomain.RecordRequest{UserID: "  ", AmountCents: 100}, want: donationdomain.ErrInvalidUser},
		{name: "zero amount", req: donationdomain.RecordRequest{UserID: "u1"}, want: donationdomain.ErrInvalidAmount},
		{name: "negative amount", req: donationdomain.RecordRequest{UserID: "u1", AmountCents: -5}, want: donationdomain.ErrInvalidAmount},
		{name: "bad currency", req: donationdomain.RecordRequest{UserID: "u1", AmountCents: 100, Currency: "dollars"}, want: donationdomain.ErrInvalidCurrency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordDonation(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, donationdomain.IsValidationError(err))
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&donationdomain.Donation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordDonationRevertsWhenPoolFails(t *testing.T) {
	ctx := context.Background()
	poolErr := &pooldomain.StorageError{Op: "save", Err: errors.New("disk full")}
	f := newFixture(t, failingPool{err: poolErr})

	_, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 15000})
	require.NoError(t, err)

	_, err = f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 5000, ContributeToPool: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, pooldomain.ErrStorageUnavailable)

	var count int64
	require.NoError(t, f.db.Model(&donationdomain.Donation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	standing, err := f.svc.Standing(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), standing.Balance.JannahPoints)
	assert.Equal(t, int64(150), standing.Balance.SadaqahCoins)
	assert.Equal(t, int64(1), standing.Balance.DonationCount)
	assert.Equal(t, int64(15000), standing.Balance.TotalCents)
}

// cancellingPool cancels the caller's context during Append, the way a
// client disconnect mid-request does.
type cancellingPool struct {
	pooldomain.Service
	cancel context.CancelFunc
	fail   bool
}

func (p cancellingPool) Append(ctx context.Context, req pooldomain.AppendRequest) (*pooldomain.Entry, error) {
	if p.fail {
		p.cancel()
		return nil, &pooldomain.StorageError{Op: "save", Err: ctx.Err()}
	}
	entry, err := p.Service.Append(ctx, req)
	p.cancel()
	return entry, err
}

func countDonations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&donationdomain.Donation{}).Count(&count).Error)
	return count
}

func TestRecordDonationRevertsWhenCancelledDuringPoolAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, cancellingPool{cancel: cancel, fail: true})

	_, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 5000, ContributeToPool: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, countDonations(t, f.db))
	standing, err := f.svc.Standing(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, standing.Balance.JannahPoints)
	assert.Zero(t, standing.Balance.SadaqahCoins)
	assert.Zero(t, standing.Balance.DonationCount)
	assert.Zero(t, standing.Balance.TotalCents)
}

func TestRecordDonationSucceedsWhenCancelledAfterPoolAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := poolservice.NewService(poolservice.Params{
		Log:     zap.NewNop(),
		Store:   poolrepository.NewMemoryStore(),
		Clock:   clock.NewFakeClock(epoch),
		Options: poolservice.Options{Backend: "memory"},
	})
	f := newFixture(t, cancellingPool{Service: pool, cancel: cancel})

	res, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 5000, ContributeToPool: true})
	require.NoError(t, err)
	require.NotNil(t, res.PoolEntry)
	assert.Equal(t, int64(500), res.Balance.JannahPoints)
	assert.Equal(t, "Bronze", res.League.Tier.Name)

	assert.Equal(t, int64(1), countDonations(t, f.db))
	unmatched, err := pool.UserUnmatchedTotal(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), unmatched)

	var stored donationdomain.Donation
	require.NoError(t, f.db.First(&stored, "id = ?", res.Donation.ID).Error)
	assert.Equal(t, res.PoolEntry.ID, stored.PoolEntryID)
}

type balanceUnavailableRepo struct {
	donationdomain.Repository
}

func (balanceUnavailableRepo) FindBalance(context.Context, *gorm.DB, string) (*donationdomain.DonorBalance, error) {
	return nil, errors.New("replica lagging")
}

func TestRecordDonationReportsCommittedDonationWhenStandingFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.repo = balanceUnavailableRepo{Repository: f.svc.repo}

	res, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: 5000, ContributeToPool: true})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Donation.JannahPoints)
	require.NotNil(t, res.PoolEntry)
	assert.Zero(t, res.Balance.JannahPoints)
	assert.Empty(t, res.League.Tier.Name)

	assert.Equal(t, int64(1), countDonations(t, f.db))
	unmatched, err := f.pool.UserUnmatchedTotal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), unmatched)
}

func TestStandingForUnknownDonor(t *testing.T) {
	f := newFixture(t, nil)

	standing, err := f.svc.Standing(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", standing.Balance.UserID)
	assert.Zero(t, standing.Balance.JannahPoints)
	assert.Equal(t, "Bronze", standing.League.Tier.Name)
	assert.Equal(t, "Seeker", standing.Rank.Tier.Name)

	_, err = f.svc.Standing(context.Background(), "")
	assert.ErrorIs(t, err, donationdomain.ErrInvalidUser)
}

func TestHistoryPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var ids []snowflake.ID
	for i := 1; i <= 5; i++ {
		res, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u1", AmountCents: int64(i) * 100})
		require.NoError(t, err)
		ids = append(ids, res.Donation.ID)
	}
	_, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: "u2", AmountCents: 100})
	require.NoError(t, err)

	first, err := f.svc.History(ctx, donationdomain.HistoryRequest{
		UserID:     "u1",
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.Donations, 2)
	assert.Equal(t, ids[4], first.Donations[0].ID)
	assert.Equal(t, ids[3], first.Donations[1].ID)
	assert.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := f.svc.History(ctx, donationdomain.HistoryRequest{
		UserID:     "u1",
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Donations, 2)
	assert.Equal(t, ids[2], second.Donations[0].ID)

	third, err := f.svc.History(ctx, donationdomain.HistoryRequest{
		UserID:     "u1",
		Pagination: pagination.Pagination{PageSize: 2, PageToken: second.PageInfo.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, third.Donations, 1)
	assert.Equal(t, ids[0], third.Donations[0].ID)
	assert.False(t, third.PageInfo.HasMore)
	assert.Empty(t, third.PageInfo.NextPageToken)

	_, err = f.svc.History(ctx, donationdomain.HistoryRequest{
		UserID:     "u1",
		Pagination: pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)

	empty, err := f.svc.History(ctx, donationdomain.HistoryRequest{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Donations)
	assert.Empty(t, empty.Donations)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	donations := []struct {
		user  string
		cents int64
	}{
		{"u1", 5000},
		{"u2", 200000},
		{"u3", 40000},
		{"u4", 40000},
	}
	for _, d := range donations {
		_, err := f.svc.RecordDonation(ctx, donationdomain.RecordRequest{UserID: d.user, UserName: strings.ToUpper(d.user), AmountCents: d.cents})
		require.NoError(t, err)
	}

	board, err := f.svc.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, 1, board[0].Position)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, "U2", board[0].UserName)
	assert.Equal(t, int64(20000), board[0].JannahPoints)
	assert.Equal(t, "Diamond", board[0].League)
	assert.Equal(t, "Guardian", board[0].Rank)

	assert.Equal(t, "u3", board[1].UserID)
	assert.Equal(t, "u4", board[2].UserID)
	assert.Equal(t, "Gold", board[2].League)

	_, err = f.svc.Leaderboard(ctx, 0)
	assert.ErrorIs(t, err, donationdomain.ErrInvalidLimit)
	_, err = f.svc.Leaderboard(ctx, 101)
	assert.ErrorIs(t, err, donationdomain.ErrInvalidLimit)
}
