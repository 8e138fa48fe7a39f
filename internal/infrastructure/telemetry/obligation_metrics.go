package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when the metrics are built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StatusCountProvider reports how many obligations sit in each status.
// The periodic collector polls it to refresh the open-obligation gauge.
type StatusCountProvider interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ObligationMetricsConfig holds configuration for the obligation metrics.
type ObligationMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StatusProvider  StatusCountProvider
}

// ObligationMetrics records scheduling and reconciliation activity.
type ObligationMetrics struct {
	logger *zap.Logger

	schedulesGenerated     *Counter
	obligationsProvisioned *Counter
	reconciliations        *Counter
	residualMinorUnits     *Counter
	cancellations          *Counter
	failures               *Counter
	reconcileDuration      *Histogram
	obligationsByStatus    *Gauge

	statusProvider  StatusCountProvider
	collectInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	collectOnce     sync.Once
}

// NewObligationMetrics creates the obligation instruments on the given meter.
func NewObligationMetrics(cfg ObligationMetricsConfig) (*ObligationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m := &ObligationMetrics{
		logger:          logger,
		statusProvider:  cfg.StatusProvider,
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}

	var err error
	if m.schedulesGenerated, err = NewCounter(cfg.Meter,
		"obligations_schedules_generated_total",
		"Number of schedules generated from negotiated terms",
		"{schedules}",
	); err != nil {
		return nil, err
	}
	if m.obligationsProvisioned, err = NewCounter(cfg.Meter,
		"obligations_provisioned_total",
		"Number of obligations created in PROVISIONED status",
		"{obligations}",
	); err != nil {
		return nil, err
	}
	if m.reconciliations, err = NewCounter(cfg.Meter,
		"obligations_reconciliations_total",
		"Number of settlement events reconciled",
		"{reconciliations}",
	); err != nil {
		return nil, err
	}
	if m.residualMinorUnits, err = NewCounter(cfg.Meter,
		"obligations_residual_minor_units_total",
		"Absolute residual handled by residual strategies, in minor units",
		"{cents}",
	); err != nil {
		return nil, err
	}
	if m.cancellations, err = NewCounter(cfg.Meter,
		"obligations_cancelled_total",
		"Number of obligations cancelled",
		"{obligations}",
	); err != nil {
		return nil, err
	}
	if m.failures, err = NewCounter(cfg.Meter,
		"obligations_operation_failures_total",
		"Number of engine operations that returned an error",
		"{failures}",
	); err != nil {
		return nil, err
	}
	if m.reconcileDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "obligations_reconcile_duration_seconds",
		Description: "Time spent reconciling one settlement event, lock wait included",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.obligationsByStatus, err = NewGauge(cfg.Meter,
		"obligations_by_status",
		"Current number of obligations per status",
		"{obligations}",
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordScheduleGenerated records one generated schedule of size obligations.
func (m *ObligationMetrics) RecordScheduleGenerated(ctx context.Context, termType string, size int) {
	m.schedulesGenerated.Inc(ctx, AttrTermType.String(termType))
	m.obligationsProvisioned.Add(ctx, int64(size), AttrTermType.String(termType))
}

// RecordReconciliation records a reconciled settlement. strategy is empty
// for exact settlements.
func (m *ObligationMetrics) RecordReconciliation(ctx context.Context, outcome, strategy string, residualMinor int64, elapsed time.Duration) {
	if strategy == "" {
		strategy = "NONE"
	}
	m.reconciliations.Inc(ctx, AttrOutcome.String(outcome), AttrStrategy.String(strategy))
	if residualMinor < 0 {
		residualMinor = -residualMinor
	}
	if residualMinor > 0 {
		m.residualMinorUnits.Add(ctx, residualMinor, AttrOutcome.String(outcome), AttrStrategy.String(strategy))
	}
	m.reconcileDuration.RecordDuration(ctx, elapsed, AttrOutcome.String(outcome))
}

// RecordCancelled records count cancelled obligations.
func (m *ObligationMetrics) RecordCancelled(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.cancellations.Add(ctx, int64(count))
}

// RecordFailure records an operation that returned an error with the given code.
func (m *ObligationMetrics) RecordFailure(ctx context.Context, operation, code string) {
	m.failures.Inc(ctx, AttrOperation.String(operation), AttrStatus.String(code))
}

// RecordStatusCount sets the status gauge.
func (m *ObligationMetrics) RecordStatusCount(ctx context.Context, status string, count int64) {
	m.obligationsByStatus.Record(ctx, count, AttrStatus.String(status))
}

// StartPeriodicCollection polls the status provider every interval until
// Stop is called or ctx is done. Only the first call starts a collector.
func (m *ObligationMetrics) StartPeriodicCollection(ctx context.Context) {
	m.collectOnce.Do(func() {
		go m.runPeriodicCollection(ctx)
	})
}

func (m *ObligationMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(m.collectInterval)
	defer ticker.Stop()

	m.collectStatusCounts(ctx)
	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Stopping periodic obligation metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectStatusCounts(ctx)
		}
	}
}

func (m *ObligationMetrics) collectStatusCounts(ctx context.Context) {
	if m.statusProvider == nil {
		m.logger.Debug("No status provider configured, skipping status collection")
		return
	}
	counts, err := m.statusProvider.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect obligation status counts", zap.Error(err))
		return
	}
	for status, count := range counts {
		m.RecordStatusCount(ctx, status, count)
	}
}

// Stop stops the periodic collection. Safe to call more than once.
func (m *ObligationMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
