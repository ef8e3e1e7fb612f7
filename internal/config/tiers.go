package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// tierSpec is the tiers.yml shape of a tier. A missing max_points marks the
// unbounded terminal tier.
type tierSpec struct {
	Name      string   `mapstructure:"name"`
	MinPoints int64    `mapstructure:"min_points"`
	MaxPoints *int64   `mapstructure:"max_points"`
	Icon      string   `mapstructure:"icon"`
	Benefits  []string `mapstructure:"benefits"`
}

// TierConfigHolder serves the current tier tables and swaps them on reload.
type TierConfigHolder struct {
	current atomic.Value // holds map[tierdomain.Kind]tierdomain.Table
	log     *zap.Logger
}

// NewTierConfigHolder loads tier tables from tiers.yml (or cfg.TiersFile),
// falling back to the built-in tables when no file exists, and watches the
// file for changes. An invalid table aborts start-up.
func NewTierConfigHolder(cfg Config, log *zap.Logger) (*TierConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := newTierViper(cfg.TiersFile)

	holder := &TierConfigHolder{log: log.Named("tier.config")}

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read tier config: %w", err)
		}
		found = false
	}

	tables, err := loadTierTables(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(tables)

	if found {
		holder.log.Info("tier tables loaded", zap.String("file", v.ConfigFileUsed()))
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			holder.reload(v, e.Name)
		})
	} else {
		holder.log.Info("tier config not found, using built-in tables")
	}

	return holder, nil
}

// Tables returns the current tables.
func (h *TierConfigHolder) Tables() map[tierdomain.Kind]tierdomain.Table {
	return h.current.Load().(map[tierdomain.Kind]tierdomain.Table)
}

func (h *TierConfigHolder) reload(v *viper.Viper, source string) {
	tables, err := loadTierTables(v)
	if err != nil {
		h.log.Warn("invalid tier config ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.current.Store(tables)
	h.log.Info("tier tables reloaded", zap.String("file", source))
}

func newTierViper(file string) *viper.Viper {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("tiers")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/sadaqah")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SADAQAH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadTierFile reads and validates the tables in a single tiers file.
func LoadTierFile(path string) (map[tierdomain.Kind]tierdomain.Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tier config: %w", err)
	}
	return loadTierTables(v)
}

func loadTierTables(v *viper.Viper) (map[tierdomain.Kind]tierdomain.Table, error) {
	tables := tierdomain.DefaultTables()
	for _, kind := range []tierdomain.Kind{tierdomain.KindLeague, tierdomain.KindRank} {
		key := "tiers." + string(kind)
		if !v.IsSet(key) {
			continue
		}
		var specs []tierSpec
		if err := v.UnmarshalKey(key, &specs); err != nil {
			return nil, &tierdomain.ConfigurationError{Kind: kind, Reason: err.Error()}
		}
		table, err := tierdomain.NewTable(kind, toTiers(specs))
		if err != nil {
			return nil, err
		}
		tables[kind] = table
	}
	return tables, nil
}

func toTiers(specs []tierSpec) []tierdomain.Tier {
	tiers := make([]tierdomain.Tier, 0, len(specs))
	for _, item := range specs {
		maxPoints := tierdomain.Unbounded
		if item.MaxPoints != nil {
			maxPoints = *item.MaxPoints
		}
		benefits := item.Benefits
		if benefits == nil {
			benefits = []string{}
		}
		tiers = append(tiers, tierdomain.Tier{
			Name:      item.Name,
			MinPoints: item.MinPoints,
			MaxPoints: maxPoints,
			Icon:      item.Icon,
			Benefits:  benefits,
		})
	}
	return tiers
}
