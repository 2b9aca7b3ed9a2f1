package reconcile

import (
	"github.com/autogenerations/printsync/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(
		configFromApp,
		New,
	),
)

func configFromApp(cfg config.Config) Config {
	c := DefaultConfig()
	c.RunInterval = cfg.RunInterval
	c.EnabledJobs = cfg.EnabledJobs
	return c.withDefaults()
}
