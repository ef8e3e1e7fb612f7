package metricspush

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sadaqah/internal/config"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(register),
)

type workerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
	Pusher    Pusher
	Gatherer  prometheus.Gatherer
	Pool      pooldomain.Service
	Gauges    *obsmetrics.PoolGauges `optional:"true"`
}

// register keeps the pool gauges fresh even when no exporter is configured,
// since other replicas may be the ones writing to the ledger.
func register(p workerParams) {
	w := NewWorker(p.Pusher, p.Gatherer, p.Pool, p.Gauges, p.Cfg.MetricsPush.Interval, p.Log)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
	if p.Pusher != nil {
		p.Log.Info("metrics push enabled", zap.String("exporter", p.Cfg.MetricsPush.Exporter))
	}
}
