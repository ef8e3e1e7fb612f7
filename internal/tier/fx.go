package tier

import (
	"github.com/smallbiznis/sadaqah/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(service.New),
)
