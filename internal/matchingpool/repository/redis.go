package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
)

const compareAndSaveScript = `
local current = redis.call("HGET", KEYS[1], "version")
if not current then
  current = "0"
end
if current ~= ARGV[2] then
  return -1
end
local next = tonumber(current) + 1
redis.call("HSET", KEYS[1], "payload", ARGV[1], "version", next)
return next
`

// RedisStore keeps the ledger in a hash holding the document and its
// version. Compare-and-swap runs server side as a script.
type RedisStore struct {
	client *redis.Client
	key    string
	cas    *redis.Script
}

func NewRedisStore(client *redis.Client, key string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("ledger key is empty")
	}
	return &RedisStore{
		client: client,
		key:    "sadaqah:ledger:" + key,
		cas:    redis.NewScript(compareAndSaveScript),
	}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.LoadVersion(ctx)
	return data, err
}

func (s *RedisStore) LoadVersion(ctx context.Context) ([]byte, uint64, error) {
	values, err := s.client.HMGet(ctx, s.key, "payload", "version").Result()
	if err != nil {
		return nil, 0, err
	}
	payload, ok := values[0].(string)
	if !ok {
		return nil, 0, nil
	}
	rawVersion, _ := values[1].(string)
	version, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("parse ledger version %q: %w", rawVersion, err)
	}
	return []byte(payload), version, nil
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, "payload", data)
	pipe.HIncrBy(ctx, s.key, "version", 1)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error) {
	next, err := s.cas.Run(ctx, s.client, []string{s.key}, data, strconv.FormatUint(expected, 10)).Int64()
	if err != nil {
		return 0, err
	}
	if next < 0 {
		return 0, pooldomain.ErrVersionConflict
	}
	return uint64(next), nil
}
