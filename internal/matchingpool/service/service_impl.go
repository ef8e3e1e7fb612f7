package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/sadaqah/internal/clock"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultCASAttempts = 5
	lockPollInterval   = 25 * time.Millisecond
)

// Options tunes concurrency control around the store.
type Options struct {
	Backend     string
	CASAttempts int
	LockKey     string
	LockTTL     time.Duration
	LockWait    time.Duration
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Store      pooldomain.Store
	Clock      clock.Clock
	Options    Options
	Locker     pooldomain.Locker       `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
	Gauges     *obsmetrics.PoolGauges `optional:"true"`
}

// Service owns the matching pool ledger. Every mutation reads the whole
// ledger, applies one change and writes the whole ledger back. Writers inside
// the process are serialised by mu; writers in other processes are detected
// through compare-and-swap when the store is versioned, or excluded by the
// distributed lock when one is configured.
type Service struct {
	log        *zap.Logger
	store      pooldomain.Store
	versioned  pooldomain.VersionedStore
	clock      clock.Clock
	locker     pooldomain.Locker
	obsMetrics *obsmetrics.Metrics
	gauges     *obsmetrics.PoolGauges
	opts       Options

	mu      sync.Mutex
	entropy io.Reader
}

func NewService(p Params) pooldomain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	opts := p.Options
	if opts.CASAttempts <= 0 {
		opts.CASAttempts = defaultCASAttempts
	}
	if strings.TrimSpace(opts.Backend) == "" {
		opts.Backend = "unknown"
	}
	if opts.LockKey == "" {
		opts.LockKey = "sadaqah:matching_pool:lock"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	svc := &Service{
		log:        log.Named("matchingpool.service"),
		store:      p.Store,
		clock:      clk,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
		gauges:     p.Gauges,
		opts:       opts,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	if versioned, ok := p.Store.(pooldomain.VersionedStore); ok {
		svc.versioned = versioned
	}
	return svc
}

func (s *Service) Append(ctx context.Context, req pooldomain.AppendRequest) (*pooldomain.Entry, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.DonationID = strings.TrimSpace(req.DonationID)
	if req.UserID == "" {
		return nil, pooldomain.ErrInvalidUser
	}
	if req.DonationID == "" {
		return nil, pooldomain.ErrInvalidDonation
	}
	if req.SadaqahCoinsAmount < 0 {
		return nil, pooldomain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate entry id: %w", err)
	}

	entry := pooldomain.Entry{
		ID:                 id.String(),
		UserID:             req.UserID,
		UserName:           strings.TrimSpace(req.UserName),
		DonationID:         req.DonationID,
		SadaqahCoinsAmount: req.SadaqahCoinsAmount,
		JannahPointsSource: req.JannahPointsSource,
		CreatedAt:          now,
		Matched:            false,
		CampaignID:         strings.TrimSpace(req.CampaignID),
		CampaignName:       strings.TrimSpace(req.CampaignName),
	}

	err = s.mutate(ctx, "append", func(entries []pooldomain.Entry) ([]pooldomain.Entry, bool, error) {
		return append(entries, entry), true, nil
	})
	if err != nil {
		s.log.Error("pool append failed",
			zap.String("user_id", entry.UserID),
			zap.String("donation_id", entry.DonationID),
			zap.Int64("amount", entry.SadaqahCoinsAmount),
			zap.Error(err),
		)
		return nil, err
	}

	s.obsMetrics.RecordPoolAppend(ctx, s.opts.Backend, entry.SadaqahCoinsAmount)
	s.log.Info("pool entry appended",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("donation_id", entry.DonationID),
		zap.Int64("amount", entry.SadaqahCoinsAmount),
	)
	return &entry, nil
}

// Match claims an unmatched entry for a business. Unknown and already-matched
// ids return false without writing; racing matchers are expected.
func (s *Service) Match(ctx context.Context, entryID, businessID, businessName string) (bool, error) {
	entryID = strings.TrimSpace(entryID)
	businessID = strings.TrimSpace(businessID)
	if entryID == "" {
		return false, pooldomain.ErrInvalidEntryID
	}
	if businessID == "" {
		return false, pooldomain.ErrInvalidBusiness
	}
	businessName = strings.TrimSpace(businessName)

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	err := s.mutate(ctx, "match", func(entries []pooldomain.Entry) ([]pooldomain.Entry, bool, error) {
		matched = false
		for i := range entries {
			if entries[i].ID != entryID || entries[i].Matched {
				continue
			}
			at := s.clock.Now().UTC()
			entries[i].Matched = true
			entries[i].MatchedByBusinessID = businessID
			entries[i].MatchedByBusinessName = businessName
			entries[i].MatchedAt = &at
			matched = true
			return entries, true, nil
		}
		return entries, false, nil
	})
	if err != nil {
		return false, err
	}

	result := "rejected"
	if matched {
		result = "matched"
		s.log.Info("pool entry matched",
			zap.String("entry_id", entryID),
			zap.String("business_id", businessID),
		)
	} else {
		s.log.Debug("pool match rejected",
			zap.String("entry_id", entryID),
			zap.String("business_id", businessID),
		)
	}
	s.obsMetrics.RecordPoolMatch(ctx, s.opts.Backend, result)
	return matched, nil
}

func (s *Service) Get(ctx context.Context, entryID string) (*pooldomain.Entry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, pooldomain.ErrInvalidEntryID
	}
	entries, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID {
			entry := entries[i]
			return &entry, nil
		}
	}
	return nil, pooldomain.ErrNotFound
}

func (s *Service) UnmatchedTotal(ctx context.Context) (int64, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return sumWhere(entries, func(e pooldomain.Entry) bool { return !e.Matched }), nil
}

func (s *Service) MatchedTotal(ctx context.Context) (int64, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return sumWhere(entries, func(e pooldomain.Entry) bool { return e.Matched }), nil
}

func (s *Service) UserUnmatchedTotal(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, pooldomain.ErrInvalidUser
	}
	entries, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return sumWhere(entries, func(e pooldomain.Entry) bool {
		return e.UserID == userID && !e.Matched
	}), nil
}

func (s *Service) UserSummary(ctx context.Context, userID string) (*pooldomain.UserSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pooldomain.ErrInvalidUser
	}
	entries, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	summary := &pooldomain.UserSummary{UserID: userID, Entries: []pooldomain.Entry{}}
	for _, e := range entries {
		if e.UserID != userID {
			continue
		}
		summary.Entries = append(summary.Entries, e)
		if e.Matched {
			summary.MatchedTotal += e.SadaqahCoinsAmount
		} else {
			summary.UnmatchedTotal += e.SadaqahCoinsAmount
		}
	}
	return summary, nil
}

// RecentMatches returns matched entries, newest match first.
func (s *Service) RecentMatches(ctx context.Context, limit int) ([]pooldomain.Entry, error) {
	if limit <= 0 {
		return nil, pooldomain.ErrInvalidLimit
	}
	entries, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]pooldomain.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Matched {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].MatchedAt, matched[j].MatchedAt
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Service) Summary(ctx context.Context) (*pooldomain.Summary, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	summary := summarize(entries)
	return &summary, nil
}

type mutation func(entries []pooldomain.Entry) ([]pooldomain.Entry, bool, error)

// mutate runs one read-modify-write cycle. Callers hold s.mu. With a
// versioned store a conflicting concurrent write causes the mutation to be
// re-applied to the fresh ledger, up to CASAttempts times.
func (s *Service) mutate(ctx context.Context, op string, fn mutation) error {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	attempts := 1
	if s.versioned != nil {
		attempts = s.opts.CASAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		data, version, err := s.load(ctx)
		if err != nil {
			return err
		}
		entries, err := pooldomain.DecodeLedger(data)
		if err != nil {
			return err
		}

		next, changed, err := fn(entries)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		encoded, err := pooldomain.EncodeLedger(next)
		if err != nil {
			return fmt.Errorf("encode ledger: %w", err)
		}

		err = s.save(ctx, encoded, version)
		if errors.Is(err, pooldomain.ErrVersionConflict) {
			s.obsMetrics.RecordPoolConflict(ctx, s.opts.Backend, op)
			s.log.Warn("ledger write conflict",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Uint64("version", version),
			)
			continue
		}
		if err != nil {
			return err
		}

		summary := summarize(next)
		s.gauges.Set(summary.UnmatchedTotal, summary.MatchedTotal, summary.Entries-summary.MatchedEntries, summary.MatchedEntries)
		return nil
	}

	return fmt.Errorf("%w: %s gave up after %d attempts", pooldomain.ErrLedgerContention, op, attempts)
}

func (s *Service) read(ctx context.Context) ([]pooldomain.Entry, error) {
	data, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return pooldomain.DecodeLedger(data)
}

func (s *Service) load(ctx context.Context) ([]byte, uint64, error) {
	if s.versioned != nil {
		data, version, err := s.versioned.LoadVersion(ctx)
		if err != nil {
			return nil, 0, &pooldomain.StorageError{Op: "load", Err: err}
		}
		return data, version, nil
	}
	data, err := s.store.Load(ctx)
	if err != nil {
		return nil, 0, &pooldomain.StorageError{Op: "load", Err: err}
	}
	return data, 0, nil
}

func (s *Service) save(ctx context.Context, data []byte, version uint64) error {
	if s.versioned != nil {
		_, err := s.versioned.CompareAndSave(ctx, data, version)
		if errors.Is(err, pooldomain.ErrVersionConflict) {
			return err
		}
		if err != nil {
			return &pooldomain.StorageError{Op: "save", Err: err}
		}
		return nil
	}
	if err := s.store.Save(ctx, data); err != nil {
		return &pooldomain.StorageError{Op: "save", Err: err}
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	deadline := s.clock.Now().Add(s.opts.LockWait)
	for {
		token, ok, err := s.locker.TryLock(ctx, s.opts.LockKey, s.opts.LockTTL)
		if err != nil {
			return nil, &pooldomain.StorageError{Op: "lock", Err: err}
		}
		if ok {
			return func() {
				// release on a fresh context so a cancelled request does not leave the lock held
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := s.locker.Release(releaseCtx, s.opts.LockKey, token); err != nil {
					s.log.Warn("failed to release ledger lock", zap.Error(err))
				}
			}, nil
		}
		if s.clock.Now().After(deadline) {
			return nil, &pooldomain.StorageError{Op: "lock", Err: errors.New("ledger lock busy")}
		}

		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &pooldomain.StorageError{Op: "lock", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func sumWhere(entries []pooldomain.Entry, keep func(pooldomain.Entry) bool) int64 {
	var total int64
	for _, e := range entries {
		if keep(e) {
			total += e.SadaqahCoinsAmount
		}
	}
	return total
}

func summarize(entries []pooldomain.Entry) pooldomain.Summary {
	var summary pooldomain.Summary
	summary.Entries = len(entries)
	for _, e := range entries {
		if e.Matched {
			summary.MatchedEntries++
			summary.MatchedTotal += e.SadaqahCoinsAmount
		} else {
			summary.UnmatchedTotal += e.SadaqahCoinsAmount
		}
	}
	summary.Total = summary.UnmatchedTotal + summary.MatchedTotal
	return summary
}
