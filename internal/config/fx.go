package config

import (
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewTierConfigHolder,
		func(h *TierConfigHolder) tierdomain.TableSource { return h },
	),
)
