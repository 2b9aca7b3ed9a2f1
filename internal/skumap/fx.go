package skumap

import (
	"github.com/autogenerations/printsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("skumap",
	fx.Provide(New),
)

func New(cfg config.Config, log *zap.Logger) (Mapper, error) {
	return NewFileMapper(cfg.SkuMapPath, cfg.SkuMapWatch, log)
}
