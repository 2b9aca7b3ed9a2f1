package order

import (
	"github.com/autogenerations/printsync/internal/order/store"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(store.New),
)
