package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records ledger sync activity.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	logger *zap.Logger

	ordersTotal          *Counter
	redistributionsTotal *Counter
	residualTotal        *Counter
	tokenRefreshTotal    *Counter
	entitiesTotal        *Counter
	syncDuration         *Histogram
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}
	var err error

	if sm.ordersTotal, err = NewCounter(meter,
		"ledger_sync_orders_total",
		"Orders processed by the ledger sync, by final state",
		"{order}",
	); err != nil {
		return nil, err
	}
	if sm.redistributionsTotal, err = NewCounter(meter,
		"ledger_sync_redistributions_total",
		"Orders whose line prices were redistributed to match the paid amount",
		"{order}",
	); err != nil {
		return nil, err
	}
	if sm.residualTotal, err = NewCounter(meter,
		"ledger_sync_residual_deficit_total",
		"Orders that kept a deficit after redistribution",
		"{order}",
	); err != nil {
		return nil, err
	}
	if sm.tokenRefreshTotal, err = NewCounter(meter,
		"ledger_sync_token_refresh_total",
		"Access token refreshes, by outcome",
		"{refresh}",
	); err != nil {
		return nil, err
	}
	if sm.entitiesTotal, err = NewCounter(meter,
		"ledger_sync_remote_entities_total",
		"Remote customers and products resolved, by how they were resolved",
		"{entity}",
	); err != nil {
		return nil, err
	}
	if sm.syncDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_sync_duration_seconds",
		Description: "Wall time of one order sync",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordOutcome counts one finished sync and its duration.
func (m *SyncMetrics) RecordOutcome(ctx context.Context, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.ordersTotal.Inc(ctx, AttrSyncState.String(state))
	m.syncDuration.RecordDuration(ctx, d, AttrSyncState.String(state))
}

// RecordRedistribution counts a redistributed order.
func (m *SyncMetrics) RecordRedistribution(ctx context.Context, residual bool) {
	if m == nil {
		return
	}
	m.redistributionsTotal.Inc(ctx)
	if residual {
		m.residualTotal.Inc(ctx)
	}
}

// RecordTokenRefresh counts a token refresh attempt.
func (m *SyncMetrics) RecordTokenRefresh(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.tokenRefreshTotal.Inc(ctx, AttrTokenOutcome.String(outcome))
}

// RecordEntityResolution counts a remote customer or product resolution.
// resolution is one of created, recovered or reused.
func (m *SyncMetrics) RecordEntityResolution(ctx context.Context, kind, resolution string) {
	if m == nil {
		return
	}
	m.entitiesTotal.Inc(ctx, AttrEntityKind.String(kind), AttrResolution.String(resolution))
}
