package catalog

import (
	"github.com/autogenerations/printsync/internal/catalog/store"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(store.New),
)
