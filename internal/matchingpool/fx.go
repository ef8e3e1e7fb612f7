package matchingpool

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sadaqah/internal/config"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/smallbiznis/sadaqah/internal/matchingpool/repository"
	"github.com/smallbiznis/sadaqah/internal/matchingpool/service"
	"github.com/smallbiznis/sadaqah/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("matchingpool.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideOptions),
	fx.Provide(provideLocker),
	fx.Provide(service.NewService),
)

func provideOptions(cfg config.Config) service.Options {
	return service.Options{
		Backend:     cfg.Ledger.Backend,
		CASAttempts: cfg.Ledger.CASAttempts,
		LockKey:     "sadaqah:ledger:lock:" + cfg.Ledger.Key,
		LockTTL:     cfg.Ledger.LockTTL,
		LockWait:    cfg.Ledger.LockWait,
	}
}

func provideLocker(cfg config.Config, client *redis.Client) pooldomain.Locker {
	if cfg.Ledger.Lock != config.LedgerLockRedis || client == nil {
		return nil
	}
	return ratelimit.NewLocker(client)
}
