package etsy

import "go.uber.org/fx"

var Module = fx.Module("etsy",
	fx.Provide(NewClient),
)
