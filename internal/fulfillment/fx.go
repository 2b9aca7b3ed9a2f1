package fulfillment

import (
	"github.com/autogenerations/printsync/internal/fulfillment/store"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment",
	fx.Provide(store.New),
)
