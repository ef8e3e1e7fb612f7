package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolGauges exposes the current matching pool balances.
type PoolGauges struct {
	coins   *prometheus.GaugeVec
	entries *prometheus.GaugeVec
}

// NewPoolGauges registers the pool gauges on reg.
func NewPoolGauges(reg prometheus.Registerer) (*PoolGauges, error) {
	coins := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sadaqah_pool_coins",
		Help: "Sadaqah coins in the matching pool by state.",
	}, []string{"state"})
	entries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sadaqah_pool_entries",
		Help: "Matching pool entries by state.",
	}, []string{"state"})

	var err error
	if coins, err = registerOrReuse(reg, coins); err != nil {
		return nil, err
	}
	if entries, err = registerOrReuse(reg, entries); err != nil {
		return nil, err
	}
	return &PoolGauges{coins: coins, entries: entries}, nil
}

// Set publishes the balances observed after a ledger write.
func (g *PoolGauges) Set(unmatchedCoins, matchedCoins int64, unmatchedEntries, matchedEntries int) {
	if g == nil {
		return
	}
	g.coins.WithLabelValues("unmatched").Set(float64(unmatchedCoins))
	g.coins.WithLabelValues("matched").Set(float64(matchedCoins))
	g.entries.WithLabelValues("unmatched").Set(float64(unmatchedEntries))
	g.entries.WithLabelValues("matched").Set(float64(matchedEntries))
}
