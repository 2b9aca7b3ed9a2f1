// Package reconcile drives the three batch loops that keep the marketplace,
// the local store and the fulfillment partner in agreement: ingest new
// receipts, submit unfulfilled ones, and track in-flight partner orders.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/autogenerations/printsync/internal/alert"
	catalogstore "github.com/autogenerations/printsync/internal/catalog/store"
	"github.com/autogenerations/printsync/internal/clock"
	"github.com/autogenerations/printsync/internal/etsy"
	fulfillmentstore "github.com/autogenerations/printsync/internal/fulfillment/store"
	obsmetrics "github.com/autogenerations/printsync/internal/observability/metrics"
	orderstore "github.com/autogenerations/printsync/internal/order/store"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/autogenerations/printsync/internal/skumap"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidConfig reports a reconciler constructed without its required
// collaborators.
var ErrInvalidConfig = errors.New("reconcile: invalid configuration")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Etsy        etsy.Client
	Prodigi     prodigi.Client
	Notifier    alert.Notifier
	SkuMap      skumap.Mapper
	Orders      *orderstore.Store
	Catalog     *catalogstore.Store
	Fulfillment *fulfillmentstore.Store
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config `optional:"true"`
}

type Reconciler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	etsy        etsy.Client
	prodigi     prodigi.Client
	notifier    alert.Notifier
	skuMap      skumap.Mapper
	orders      *orderstore.Store
	catalog     *catalogstore.Store
	fulfillment *fulfillmentstore.Store
	genID       *snowflake.Node
	clock       clock.Clock
}

func New(p Params) (*Reconciler, error) {
	if p.DB == nil || p.Log == nil || p.Etsy == nil || p.Prodigi == nil || p.Notifier == nil ||
		p.SkuMap == nil || p.Orders == nil || p.Catalog == nil || p.Fulfillment == nil ||
		p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Reconciler{
		db:          p.DB,
		log:         p.Log.Named("reconcile").With(zap.String("component", "reconcile")),
		cfg:         p.Config.withDefaults(),
		etsy:        p.Etsy,
		prodigi:     p.Prodigi,
		notifier:    p.Notifier,
		skuMap:      p.SkuMap,
		orders:      p.Orders,
		catalog:     p.Catalog,
		fulfillment: p.Fulfillment,
		genID:       p.GenID,
		clock:       p.Clock,
	}, nil
}

func (r *Reconciler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := r.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := r.log.With(zap.String("job", name))
	recMetrics := obsmetrics.Reconcile()
	recMetrics.IncJobRun(name)

	err := fn(ctx)
	recMetrics.ObserveJobDuration(name, r.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	// Operator shutdown, not a job fault. Surface it without touching the
	// timeout or error counters.
	if errors.Is(err, context.Canceled) {
		log.Info("job interrupted", zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	// Deadlines are soft: the next scheduled run resumes where this one
	// stopped, thanks to the idempotent upsert discipline.
	if errors.Is(err, context.DeadlineExceeded) {
		recMetrics.IncJobTimeout(name)
		recMetrics.IncJobError(name, err)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	recMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes each enabled loop in dependency order: ingest before
// submit before track.
func (r *Reconciler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"ingest", r.isJobEnabled("ingest"), func(ctx context.Context) error {
			return r.runJob(ctx, "ingest", r.cfg.IngestTimeout, r.IngestJob)
		}},
		{"submit", r.isJobEnabled("submit"), func(ctx context.Context) error {
			return r.runJob(ctx, "submit", r.cfg.SubmitTimeout, r.SubmitJob)
		}},
		{"track", r.isJobEnabled("track"), func(ctx context.Context) error {
			return r.runJob(ctx, "track", r.cfg.TrackTimeout, r.TrackJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

// RunForever runs the loops on the configured interval until ctx is done.
// All waiting goes through the injected clock so the resident loop can be
// driven deterministically in tests.
func (r *Reconciler) RunForever(ctx context.Context) {
	nextRun := r.clock.Now()
	recMetrics := obsmetrics.Reconcile()

	for {
		runLag := r.clock.Now().Sub(nextRun)
		if runLag > 0 {
			recMetrics.ObserveRunLoopLag(runLag)
		}
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconcile run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(r.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(nextRun.Sub(r.clock.Now())):
		}
	}
}

func (r *Reconciler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (single-process mode).
	if len(r.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range r.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// guard converts a panic inside one receipt's processing into an error so
// the loop's isolation boundary also holds against programming mistakes.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn()
}

// alertError emails one receipt's failure and keeps the batch going. This
// is the partial-failure isolation boundary of the loops.
func (r *Reconciler) alertError(ctx context.Context, job string, receiptID int64, err error) {
	subject := fmt.Sprintf("[printsync] %s failed for receipt %d", job, receiptID)
	body := fmt.Sprintf("Receipt %d could not be processed by the %s loop.\n\nError:\n%v\n", receiptID, job, err)
	if sendErr := r.notifier.Send(ctx, subject, body); sendErr != nil {
		r.log.Warn("alert delivery failed", zap.String("job", job), zap.Error(sendErr))
		return
	}
	obsmetrics.Reconcile().IncAlertSent()
}
