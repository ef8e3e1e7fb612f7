package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sadaqah/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledDonationLimiterAllows(t *testing.T) {
	limiter, err := NewDonationLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowDonor(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	var nilLimiter *DonationLimiter
	assert.False(t, nilLimiter.Enabled())
}

func TestDonationLimiterRejectsBadConfig(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, DonorRate: 1, DonorBurst: 5}}
	_, err := NewDonationLimiter(cfg, nil)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	cfg.RateLimit.DonorBurst = 0
	_, err = NewDonationLimiter(cfg, client)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptValueConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
}

func TestLockerArgumentChecks(t *testing.T) {
	assert.Nil(t, NewLocker(nil))

	var locker *Locker
	_, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	_, _, err = NewLocker(client).TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrInvalidLock)
	_, _, err = NewLocker(client).TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidLock)
}

func TestTokenBucketArgumentChecks(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	_, err = NewTokenBucket(client).Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func liveRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTokenBucketAgainstRedis(t *testing.T) {
	client := liveRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:bucket:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	bucket := NewTokenBucket(client)
	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, key, 0.1, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := bucket.Allow(ctx, key, 0.1, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLockerAgainstRedis(t *testing.T) {
	client := liveRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:lock:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	locker := NewLocker(client)
	token, ok, err := locker.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, key, "someone-else"))
	_, ok, err = locker.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, key, token))
	_, ok, err = locker.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
