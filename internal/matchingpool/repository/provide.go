package repository

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sadaqah/internal/config"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB      `optional:"true"`
	Redis     *redis.Client `optional:"true"`
}

// Provide selects the ledger store named by LEDGER_BACKEND.
func Provide(p StoreParams) (pooldomain.Store, error) {
	ledger := p.Cfg.Ledger
	log := p.Log.Named("matchingpool.store")

	var (
		store pooldomain.Store
		err   error
	)
	switch ledger.Backend {
	case config.LedgerBackendMemory:
		store = NewMemoryStore()
	case config.LedgerBackendFile:
		store, err = NewFileStore(afero.NewOsFs(), ledger.FilePath)
	case config.LedgerBackendSQL:
		store, err = NewSQLStore(p.DB, ledger.Key)
	case config.LedgerBackendRedis:
		store, err = NewRedisStore(p.Redis, ledger.Key)
	case config.LedgerBackendNATS:
		store, err = provideNATS(p, ledger.Key)
	default:
		err = fmt.Errorf("unsupported ledger backend %q", ledger.Backend)
	}
	if err != nil {
		return nil, err
	}

	_, versioned := store.(pooldomain.VersionedStore)
	log.Info("ledger store ready",
		zap.String("backend", ledger.Backend),
		zap.String("key", ledger.Key),
		zap.Bool("versioned", versioned),
	)
	return store, nil
}

func provideNATS(p StoreParams, key string) (pooldomain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, kv, err := ConnectNATS(ctx, p.Cfg.NATSURL, p.Cfg.NATSBucket)
	if err != nil {
		return nil, fmt.Errorf("connect nats ledger: %w", err)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return nc.Drain()
		},
	})
	return NewNATSStore(kv, key)
}
