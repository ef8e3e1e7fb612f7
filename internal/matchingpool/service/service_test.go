package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/sadaqah/internal/clock"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/smallbiznis/sadaqah/internal/matchingpool/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store pooldomain.Store, clk clock.Clock) *Service {
	t.Helper()
	if clk == nil {
		clk = clock.NewFakeClock(epoch)
	}
	return newService(Params{
		Log:     zap.NewNop(),
		Store:   store,
		Clock:   clk,
		Options: Options{Backend: "memory"},
	})
}

func appendCoins(t *testing.T, svc *Service, userID string, amount int64) *pooldomain.Entry {
	t.Helper()
	entry, err := svc.Append(context.Background(), pooldomain.AppendRequest{
		UserID:             userID,
		UserName:           "Donor " + userID,
		DonationID:         fmt.Sprintf("don-%s-%d", userID, amount),
		SadaqahCoinsAmount: amount,
		JannahPointsSource: amount * 10,
	})
	require.NoError(t, err)
	return entry
}

func TestAppendAndMatchScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, repository.NewMemoryStore(), nil)

	appendCoins(t, svc, "u1", 10)
	second := appendCoins(t, svc, "u1", 20)
	appendCoins(t, svc, "u1", 30)

	total, err := svc.UnmatchedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	ok, err := svc.Match(ctx, second.ID, "b1", "Bakery One")
	require.NoError(t, err)
	assert.True(t, ok)

	unmatched, err := svc.UnmatchedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), unmatched)

	matched, err := svc.MatchedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), matched)

	userUnmatched, err := svc.UserUnmatchedTotal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), userUnmatched)

	recent, err := svc.RecentMatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, "b1", recent[0].MatchedByBusinessID)
	assert.Equal(t, "Bakery One", recent[0].MatchedByBusinessName)
	require.NotNil(t, recent[0].MatchedAt)
}

func TestAppendAssignsUniqueIDsAndTimestamps(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), nil)

	first := appendCoins(t, svc, "u1", 5)
	second := appendCoins(t, svc, "u1", 5)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, epoch, first.CreatedAt)
	assert.False(t, first.Matched)
	assert.Nil(t, first.MatchedAt)
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newTestService(t, store, nil)

	_, err := svc.Append(ctx, pooldomain.AppendRequest{DonationID: "d1", SadaqahCoinsAmount: 1})
	assert.ErrorIs(t, err, pooldomain.ErrInvalidUser)

	_, err = svc.Append(ctx, pooldomain.AppendRequest{UserID: "u1", SadaqahCoinsAmount: 1})
	assert.ErrorIs(t, err, pooldomain.ErrInvalidDonation)

	_, err = svc.Append(ctx, pooldomain.AppendRequest{UserID: "u1", DonationID: "d1", SadaqahCoinsAmount: -1})
	assert.ErrorIs(t, err, pooldomain.ErrInvalidAmount)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMatchIsOneWay(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	clk := clock.NewFakeClock(epoch)
	svc := newTestService(t, store, clk)

	entry := appendCoins(t, svc, "u1", 20)

	ok, err := svc.Match(ctx, entry.ID, "b1", "First")
	require.NoError(t, err)
	require.True(t, ok)

	_, versionBefore, err := store.LoadVersion(ctx)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	ok, err = svc.Match(ctx, entry.ID, "b2", "Second")
	require.NoError(t, err)
	assert.False(t, ok)

	_, versionAfter, err := store.LoadVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)

	got, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "b1", got.MatchedByBusinessID)
	assert.Equal(t, epoch, *got.MatchedAt)
}

func TestMatchUnknownIDLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newTestService(t, store, nil)
	appendCoins(t, svc, "u1", 10)

	before, err := store.Load(ctx)
	require.NoError(t, err)

	ok, err := svc.Match(ctx, "does-not-exist", "b1", "Bakery")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMatchRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), nil)

	_, err := svc.Match(context.Background(), "", "b1", "")
	assert.ErrorIs(t, err, pooldomain.ErrInvalidEntryID)

	_, err = svc.Match(context.Background(), "x", " ", "")
	assert.ErrorIs(t, err, pooldomain.ErrInvalidBusiness)
}

func TestTotalsAreConserved(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, repository.NewMemoryStore(), nil)
	rng := rand.New(rand.NewSource(7))

	var appended int64
	var ids []string
	for i := 0; i < 60; i++ {
		amount := rng.Int63n(100)
		appended += amount
		entry := appendCoins(t, svc, fmt.Sprintf("u%d", i%4), amount)
		ids = append(ids, entry.ID)

		if rng.Intn(2) == 0 {
			_, err := svc.Match(ctx, ids[rng.Intn(len(ids))], "b1", "Sponsor")
			require.NoError(t, err)
		}

		unmatched, err := svc.UnmatchedTotal(ctx)
		require.NoError(t, err)
		matched, err := svc.MatchedTotal(ctx)
		require.NoError(t, err)
		require.Equal(t, appended, unmatched+matched)
	}

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, summary.Entries)
	assert.Equal(t, appended, summary.Total)
}

func TestRecentMatchesOrdering(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(epoch)
	svc := newTestService(t, repository.NewMemoryStore(), clk)

	a := appendCoins(t, svc, "u1", 1)
	b := appendCoins(t, svc, "u2", 2)
	c := appendCoins(t, svc, "u3", 3)

	for _, id := range []string{b.ID, a.ID, c.ID} {
		clk.Advance(time.Minute)
		ok, err := svc.Match(ctx, id, "b1", "")
		require.NoError(t, err)
		require.True(t, ok)
	}

	recent, err := svc.RecentMatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, c.ID, recent[0].ID)
	assert.Equal(t, a.ID, recent[1].ID)

	_, err = svc.RecentMatches(ctx, 0)
	assert.ErrorIs(t, err, pooldomain.ErrInvalidLimit)
}

func TestUserSummary(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, repository.NewMemoryStore(), nil)

	first := appendCoins(t, svc, "u1", 10)
	appendCoins(t, svc, "u1", 15)
	appendCoins(t, svc, "u2", 99)

	_, err := svc.Match(ctx, first.ID, "b1", "")
	require.NoError(t, err)

	summary, err := svc.UserSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, summary.Entries, 2)
	assert.Equal(t, int64(15), summary.UnmatchedTotal)
	assert.Equal(t, int64(10), summary.MatchedTotal)

	empty, err := svc.UserSummary(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}

func TestGetUnknownEntry(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), nil)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, pooldomain.ErrNotFound)
}

func TestLegacyLedgerIsUpgradedOnWrite(t *testing.T) {
	ctx := context.Background()
	legacy := []byte(`[{"id":"old-1","userId":"u1","userName":"","donationId":"d0","sadaqahCoinsAmount":7,"jannahPointsSource":70,"createdAt":"2024-01-01T00:00:00Z","matched":false}]`)
	store := repository.NewMemoryStoreWith(legacy)
	svc := newTestService(t, store, nil)

	total, err := svc.UnmatchedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	appendCoins(t, svc, "u1", 3)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema_version":1`)

	entries, err := pooldomain.DecodeLedger(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "old-1", entries[0].ID)
}

func TestCorruptLedgerIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStoreWith([]byte(`{"schema_version":9,"entries":[]}`))
	svc := newTestService(t, store, nil)

	_, err := svc.Append(ctx, pooldomain.AppendRequest{UserID: "u1", DonationID: "d1", SadaqahCoinsAmount: 1})
	var decodeErr *pooldomain.DecodeError
	require.ErrorAs(t, err, &decodeErr)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema_version":9,"entries":[]}`, string(data))
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (s *failingStore) Load(context.Context) ([]byte, error) { return nil, s.loadErr }
func (s *failingStore) Save(context.Context, []byte) error   { return s.saveErr }

func TestStorageFailureIsReported(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("disk on fire")

	svc := newTestService(t, &failingStore{loadErr: cause}, nil)
	_, err := svc.UnmatchedTotal(ctx)
	assert.ErrorIs(t, err, pooldomain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)

	svc = newTestService(t, &failingStore{saveErr: cause}, nil)
	_, err = svc.Append(ctx, pooldomain.AppendRequest{UserID: "u1", DonationID: "d1", SadaqahCoinsAmount: 1})
	var storageErr *pooldomain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "save", storageErr.Op)
}

// interleavingStore lets another writer sneak in before the first
// compare-and-save it sees.
type interleavingStore struct {
	*repository.MemoryStore
	once  sync.Once
	sneak func()
}

func (s *interleavingStore) CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error) {
	s.once.Do(s.sneak)
	return s.MemoryStore.CompareAndSave(ctx, data, expected)
}

func TestConcurrentWriterConflictIsReapplied(t *testing.T) {
	ctx := context.Background()
	shared := repository.NewMemoryStore()
	other := newTestService(t, shared, nil)

	store := &interleavingStore{MemoryStore: shared}
	store.sneak = func() { appendCoins(t, other, "u2", 5) }
	svc := newTestService(t, store, nil)

	appendCoins(t, svc, "u1", 10)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entries)
	assert.Equal(t, int64(15), summary.UnmatchedTotal)
}

type alwaysConflictStore struct {
	*repository.MemoryStore
}

func (s *alwaysConflictStore) CompareAndSave(context.Context, []byte, uint64) (uint64, error) {
	return 0, pooldomain.ErrVersionConflict
}

func TestPersistentConflictGivesUp(t *testing.T) {
	svc := newTestService(t, &alwaysConflictStore{MemoryStore: repository.NewMemoryStore()}, nil)

	_, err := svc.Append(context.Background(), pooldomain.AppendRequest{UserID: "u1", DonationID: "d1", SadaqahCoinsAmount: 1})
	assert.ErrorIs(t, err, pooldomain.ErrLedgerContention)
}

func TestConcurrentAppendsAreAllKept(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, repository.NewMemoryStore(), clock.New())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, pooldomain.AppendRequest{
				UserID:             "u1",
				DonationID:         fmt.Sprintf("d%d", i),
				SadaqahCoinsAmount: 2,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	total, err := svc.UnmatchedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockLocker) Release(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func TestLockIsHeldAroundWrites(t *testing.T) {
	locker := new(mockLocker)
	locker.On("TryLock", mock.Anything, "pool-lock", time.Second).Return("tok", true, nil).Once()
	locker.On("Release", mock.Anything, "pool-lock", "tok").Return(nil).Once()

	svc := newService(Params{
		Log:     zap.NewNop(),
		Store:   repository.NewMemoryStore(),
		Clock:   clock.NewFakeClock(epoch),
		Locker:  locker,
		Options: Options{LockKey: "pool-lock", LockTTL: time.Second},
	})

	appendCoins(t, svc, "u1", 1)
	locker.AssertExpectations(t)
}

func TestBusyLockTimesOut(t *testing.T) {
	clk := clock.NewFakeClock(epoch)
	locker := new(mockLocker)
	locker.On("TryLock", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { clk.Advance(25 * time.Millisecond) }).
		Return("", false, nil)

	store := repository.NewMemoryStore()
	svc := newService(Params{
		Log:     zap.NewNop(),
		Store:   store,
		Clock:   clk,
		Locker:  locker,
		Options: Options{LockWait: 60 * time.Millisecond},
	})

	_, err := svc.Append(context.Background(), pooldomain.AppendRequest{UserID: "u1", DonationID: "d1", SadaqahCoinsAmount: 1})
	var storageErr *pooldomain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "lock", storageErr.Op)
	locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	// 25ms per attempt against a 60ms wait: the third attempt is past the deadline
	locker.AssertNumberOfCalls(t, "TryLock", 3)

	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}
