package prodigi

import "go.uber.org/fx"

var Module = fx.Module("prodigi",
	fx.Provide(NewClient),
)
