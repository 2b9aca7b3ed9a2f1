package main

import (
	"context"

	"github.com/autogenerations/printsync/internal/alert"
	"github.com/autogenerations/printsync/internal/catalog"
	"github.com/autogenerations/printsync/internal/clock"
	"github.com/autogenerations/printsync/internal/config"
	"github.com/autogenerations/printsync/internal/etsy"
	"github.com/autogenerations/printsync/internal/fulfillment"
	"github.com/autogenerations/printsync/internal/migration"
	"github.com/autogenerations/printsync/internal/observability"
	"github.com/autogenerations/printsync/internal/order"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/autogenerations/printsync/internal/reconcile"
	"github.com/autogenerations/printsync/internal/server"
	"github.com/autogenerations/printsync/internal/skumap"
	"github.com/autogenerations/printsync/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// ingest is the split deployment running only the marketplace pull loop.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,

		etsy.Module,
		prodigi.Module,
		alert.Module,
		skumap.Module,

		order.Module,
		catalog.Module,
		fulfillment.Module,

		reconcile.Module,
		fx.Decorate(func(cfg reconcile.Config) reconcile.Config {
			cfg.EnabledJobs = []string{"ingest"}
			return cfg
		}),
		fx.Invoke(StartReconciler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func StartReconciler(lc fx.Lifecycle, r *reconcile.Reconciler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go r.RunForever(context.Background())
			return nil
		},
	})
}
