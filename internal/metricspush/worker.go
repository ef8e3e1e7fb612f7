package metricspush

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	defaultInterval = 15 * time.Second
	exportTimeout   = 5 * time.Second
)

// Worker refreshes the pool gauges from the ledger and pushes the gathered
// metrics on a fixed interval.
type Worker struct {
	pusher   Pusher
	gatherer prometheus.Gatherer
	pool     pooldomain.Service
	gauges   *obsmetrics.PoolGauges
	interval time.Duration
	log      *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	errorOnce atomic.Bool
}

func NewWorker(pusher Pusher, gatherer prometheus.Gatherer, pool pooldomain.Service, gauges *obsmetrics.PoolGauges, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	if gatherer != nil {
		gatherer = prefixGatherer{next: gatherer, prefix: servicePrefix}
	}
	return &Worker{
		pusher:   pusher,
		gatherer: gatherer,
		pool:     pool,
		gauges:   gauges,
		interval: interval,
		log:      log.Named("metrics.push"),
	}
}

func (w *Worker) Start() {
	if w == nil || w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.RunOnce(context.Background())
		for {
			select {
			case <-ticker.C:
				w.RunOnce(context.Background())
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *Worker) Stop(ctx context.Context) error {
	if w == nil || w.stopCh == nil {
		return nil
	}
	close(w.stopCh)
	select {
	case <-w.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	if closer, ok := w.pusher.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// RunOnce performs a single refresh and push.
func (w *Worker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	w.refreshPoolGauges(ctx)
	if w.pusher == nil {
		return
	}
	if err := w.pusher.Push(ctx, w.gatherer); err != nil {
		// one warning per failure streak
		if w.errorOnce.CompareAndSwap(false, true) {
			w.log.Warn("metrics push failed", zap.Error(err))
		}
		return
	}
	if w.errorOnce.CompareAndSwap(true, false) {
		w.log.Info("metrics push recovered")
	}
}

func (w *Worker) refreshPoolGauges(ctx context.Context) {
	if w.pool == nil || w.gauges == nil {
		return
	}
	summary, err := w.pool.Summary(ctx)
	if err != nil {
		w.log.Debug("pool summary unavailable", zap.Error(err))
		return
	}
	w.gauges.Set(summary.UnmatchedTotal, summary.MatchedTotal, summary.Entries-summary.MatchedEntries, summary.MatchedEntries)
}
