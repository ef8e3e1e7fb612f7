package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sadaqah/internal/config"
)

const keyDonationDonor = "sadaqah:donation:donor:%s"

// DonationLimiter throttles how often a single donor may record donations.
// A nil or disabled limiter allows everything.
type DonationLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewDonationLimiter(cfg config.Config, client *redis.Client) (*DonationLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return &DonationLimiter{}, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires a redis client")
	}
	if limitCfg.DonorRate <= 0 || limitCfg.DonorBurst <= 0 {
		return nil, errors.New("donor rate limit must be positive")
	}
	return &DonationLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.DonorRate,
		burst:   limitCfg.DonorBurst,
	}, nil
}

func (l *DonationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *DonationLimiter) AllowDonor(ctx context.Context, donorID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyDonationDonor, strings.TrimSpace(donorID)), l.rate, l.burst)
}
