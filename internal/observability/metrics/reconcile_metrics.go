package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped onto every reconciler metric.
type Config struct {
	ServiceName string
	Environment string
}

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonConflict         = "unique_violation"
	JobReasonAPI              = "api"
	JobReasonUnknown          = "unknown"
)

// ReconcileMetrics captures health signals for the order reconciliation loops.
type ReconcileMetrics struct {
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobTimeouts       *prometheus.CounterVec
	jobErrors         *prometheus.CounterVec
	receiptsProcessed *prometheus.CounterVec
	receiptsFailed    *prometheus.CounterVec
	alertsSent        prometheus.Counter
	shipmentsPosted   prometheus.Counter
	runLoopLag        prometheus.Observer
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconcile returns the singleton reconciler metrics registry.
func Reconcile() *ReconcileMetrics {
	return ReconcileWithConfig(Config{})
}

// ReconcileWithConfig returns the singleton reconciler metrics registry using config labels.
func ReconcileWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

// ResetReconcileMetricsForTest resets the reconciler metrics singleton for tests.
func ResetReconcileMetricsForTest() {
	reconcileMetricsOnce = sync.Once{}
	reconcileMetrics = nil
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "printsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printsync_reconcile_job_runs_total",
		Help:        "Reconcile job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "printsync_reconcile_job_duration_seconds",
		Help:        "Reconcile job latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printsync_reconcile_job_timeouts_total",
		Help:        "Reconcile jobs cut short by their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printsync_reconcile_job_errors_total",
		Help:        "Reconcile job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	receiptsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printsync_reconcile_receipts_processed_total",
		Help:        "Receipts fully processed per job.",
		ConstLabels: constLabels,
	}, []string{"job"})
	receiptsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printsync_reconcile_receipts_failed_total",
		Help:        "Receipts skipped after an error, isolated from the rest of the batch.",
		ConstLabels: constLabels,
	}, []string{"job"})
	alertsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "printsync_reconcile_alerts_sent_total",
		Help:        "Operator alerts dispatched by the reconcile loops.",
		ConstLabels: constLabels,
	})
	shipmentsPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "printsync_reconcile_shipments_posted_total",
		Help:        "Shipment confirmations posted back to the marketplace.",
		ConstLabels: constLabels,
	})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "printsync_reconcile_runloop_lag_seconds",
		Help:        "Run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		receiptsProcessed,
		receiptsFailed,
		alertsSent,
		shipmentsPosted,
		runLoopLag,
	)

	return &ReconcileMetrics{
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
		jobTimeouts:       jobTimeouts,
		jobErrors:         jobErrors,
		receiptsProcessed: receiptsProcessed,
		receiptsFailed:    receiptsFailed,
		alertsSent:        alertsSent,
		shipmentsPosted:   shipmentsPosted,
		runLoopLag:        runLoopLag,
	}
}

func (m *ReconcileMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *ReconcileMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *ReconcileMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *ReconcileMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifyError(err)).Inc()
}

func (m *ReconcileMetrics) IncReceiptProcessed(job string) {
	if m == nil {
		return
	}
	m.receiptsProcessed.WithLabelValues(job).Inc()
}

func (m *ReconcileMetrics) IncReceiptFailed(job string) {
	if m == nil {
		return
	}
	m.receiptsFailed.WithLabelValues(job).Inc()
}

func (m *ReconcileMetrics) IncAlertSent() {
	if m == nil {
		return
	}
	m.alertsSent.Inc()
}

func (m *ReconcileMetrics) IncShipmentPosted() {
	if m == nil {
		return
	}
	m.shipmentsPosted.Inc()
}

func (m *ReconcileMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case strings.Contains(err.Error(), "duplicate key"),
		strings.Contains(err.Error(), "UNIQUE constraint"):
		return JobReasonConflict
	case strings.Contains(err.Error(), "status "):
		return JobReasonAPI
	default:
		return JobReasonUnknown
	}
}
