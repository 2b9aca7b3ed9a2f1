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

// printsync is the single-process deployment: all three reconcile loops in
// one binary. Set ENABLED_JOBS to restrict which loops this instance runs.
func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,

		// External surfaces
		etsy.Module,
		prodigi.Module,
		alert.Module,
		skumap.Module,

		// Domain stores
		order.Module,
		catalog.Module,
		fulfillment.Module,

		reconcile.Module,
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
