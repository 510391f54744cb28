package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/logger"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
)

// Options configures a SyncService
type Options struct {
	Customer CustomerDefaults
	Product  ProductDefaults
	Metrics  *telemetry.SyncMetrics
	// Now overrides the clock used for audit timestamps and order dates
	Now func() time.Time
}

// SyncService replicates paid storefront orders into the remote ledger.
// One call to SyncOrder walks a single order through
// UNSYNCED -> RESOLVING_CUSTOMER -> RESOLVING_PRODUCTS -> SUBMITTING -> SYNCED.
type SyncService struct {
	orders      ledger.OrderSource
	gateway     ledger.Gateway
	records     ledger.SyncRecordRepository
	submissions ledger.SubmissionStore
	rules       *ledger.CatalogRules
	resolver    *Resolver
	reconciler  *ledger.Reconciler
	payload     *PayloadBuilder
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewSyncService creates a new SyncService
func NewSyncService(
	orders ledger.OrderSource,
	gateway ledger.Gateway,
	records ledger.SyncRecordRepository,
	submissions ledger.SubmissionStore,
	rules *ledger.CatalogRules,
	opts Options,
	logger *zap.Logger,
) *SyncService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.Named("ledger_sync")
	return &SyncService{
		orders:      orders,
		gateway:     gateway,
		records:     records,
		submissions: submissions,
		rules:       rules,
		resolver:    NewResolver(gateway, rules, opts.Customer, opts.Product, opts.Metrics, logger),
		reconciler:  ledger.NewReconciler(rules),
		payload:     NewPayloadBuilder(rules, now),
		metrics:     opts.Metrics,
		logger:      logger,
		now:         now,
	}
}

// PendingOrders returns up to limit paid orders that still need to be synchronized
func (s *SyncService) PendingOrders(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.orders.ListUnsyncedOrderIDs(ctx, limit)
}

// History returns the most recent sync attempts of an order, newest first
func (s *SyncService) History(ctx context.Context, orderID uuid.UUID, limit int) ([]ledger.SyncRecord, error) {
	return s.records.FindByOrderID(ctx, orderID, limit)
}

// ---------------------------------------------------------------------------
// Order Synchronization
// ---------------------------------------------------------------------------

// attempt tracks the state of one SyncOrder run
type attempt struct {
	record *ledger.SyncRecord
	logger *zap.Logger
}

func (a *attempt) moveTo(next ledger.SyncState) {
	if !a.record.State.CanTransitionTo(next) {
		a.logger.Warn("Unexpected sync state transition",
			zap.String("from", a.record.State.String()),
			zap.String("to", next.String()),
		)
	}
	a.logger.Debug("Sync state changed",
		zap.String("from", a.record.State.String()),
		zap.String("to", next.String()),
	)
	a.record.State = next
}

// SyncOrder synchronizes one order. The returned outcome is never nil.
//
// A rejected customer location leaves the order unsynchronized with a FAILED
// outcome and a nil error so the batch moves on. Every other failure is also
// FAILED but returns the error to the caller. No remote entity is rolled back.
func (s *SyncService) SyncOrder(ctx context.Context, orderID uuid.UUID) (*ledger.SyncOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_sync", "sync_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
	)
	defer span.End()

	a := &attempt{
		record: &ledger.SyncRecord{
			ID:        uuid.New(),
			OrderID:   orderID,
			State:     ledger.SyncStateUnsynced,
			StartedAt: s.now(),
		},
		logger: logger.WithTraceContext(ctx, s.logger).With(zap.String("order_id", orderID.String())),
	}
	if jobID := logger.GetJobID(ctx); jobID != "" {
		a.logger = a.logger.With(zap.String("job_id", jobID))
	}

	outcome, err := s.finish(ctx, a, s.run(ctx, a))

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncState, outcome.State.String(),
		telemetry.SpanAttrRemoteOrderID, outcome.RemoteOrderID,
	)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	return outcome, err
}

func (s *SyncService) run(ctx context.Context, a *attempt) error {
	order, err := s.orders.GetOrderForSync(ctx, a.record.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	a.record.OrderNumber = order.Number
	a.logger = a.logger.With(zap.String("order_number", order.Number))

	if order.Synchronized {
		a.moveTo(ledger.SyncStateSkipped)
		return nil
	}
	if err := order.Validate(); err != nil {
		return err
	}

	if recovered, err := s.recoverSubmission(ctx, a); recovered || err != nil {
		return err
	}

	a.moveTo(ledger.SyncStateResolvingCustomer)
	customer, err := s.resolver.ResolveCustomer(ctx, order.Customer)
	if err != nil {
		return err
	}
	address, ok := customer.LatestAddress()
	if !ok {
		return fmt.Errorf("%w: associate %s", ledger.ErrMissingAddress, customer.ID)
	}
	a.record.RemoteCustomerID = customer.ID

	rec := s.reconciler.Reconcile(order)
	s.noteReconciliation(ctx, a, rec)

	a.moveTo(ledger.SyncStateResolvingProducts)
	input := PayloadInput{
		Order:          order,
		Reconciliation: rec,
		CustomerID:     customer.ID,
		AddressID:      address.ID,
		ProductIDs:     make([]string, 0, len(rec.Lines)),
	}
	seen := ProductCache{}
	if rec.ShippingCharged {
		shipping, err := s.resolver.ResolveProduct(ctx, s.rules.ShippingProduct(), rec.ShippingCost, seen)
		if err != nil {
			return err
		}
		input.ShippingProductID = shipping.ID
	}
	// sequential: the ledger tolerates little concurrency and the token cache is shared
	for _, line := range rec.Lines {
		product, err := s.resolver.ResolveProduct(ctx, line.Product, line.OriginalPrice, seen)
		if err != nil {
			return err
		}
		input.ProductIDs = append(input.ProductIDs, product.ID)
	}

	draft, err := s.payload.Build(input)
	if err != nil {
		return err
	}

	a.moveTo(ledger.SyncStateSubmitting)
	remote, err := s.gateway.CreateOrder(ctx, draft)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	a.record.RemoteOrderID = remote.ID
	if err := s.submissions.Remember(ctx, order.ID, remote.ID); err != nil {
		a.logger.Warn("Failed to remember remote order", zap.String("remote_id", remote.ID), zap.Error(err))
	}

	return s.markSynced(ctx, a)
}

// recoverSubmission finishes an order whose remote order was created by an
// earlier attempt that failed to mark it synchronized.
func (s *SyncService) recoverSubmission(ctx context.Context, a *attempt) (bool, error) {
	remoteOrderID, found, err := s.submissions.Lookup(ctx, a.record.OrderID)
	if err != nil {
		a.logger.Warn("Submission lookup failed, running a full sync", zap.Error(err))
		return false, nil
	}
	if !found {
		return false, nil
	}

	a.record.RemoteOrderID = remoteOrderID
	a.logger.Info("Remote order already exists, marking order synchronized",
		zap.String("remote_id", remoteOrderID),
	)
	return true, s.markSynced(ctx, a)
}

func (s *SyncService) markSynced(ctx context.Context, a *attempt) error {
	if err := s.orders.MarkSynced(ctx, a.record.OrderID); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	a.moveTo(ledger.SyncStateSynced)

	if err := s.submissions.Forget(ctx, a.record.OrderID); err != nil {
		a.logger.Warn("Failed to clear remembered submission", zap.Error(err))
	}
	return nil
}

func (s *SyncService) noteReconciliation(ctx context.Context, a *attempt, rec *ledger.Reconciliation) {
	a.record.LineCount = len(rec.Lines)
	a.record.Redistributed = rec.Redistributed
	a.record.ResidualDeficit = rec.Residual

	if !rec.Redistributed {
		return
	}
	s.metrics.RecordRedistribution(ctx, rec.Residual.IsPositive())
	if rec.Residual.IsPositive() {
		a.logger.Warn("Collected payment is below the line floors, deficit left unabsorbed",
			zap.String("listed_total", rec.ListedTotal.StringFixed(2)),
			zap.String("target_total", rec.TargetTotal.StringFixed(2)),
			zap.String("residual", rec.Residual.StringFixed(2)),
		)
		return
	}
	a.logger.Debug("Line prices redistributed",
		zap.String("listed_total", rec.ListedTotal.StringFixed(2)),
		zap.String("target_total", rec.TargetTotal.StringFixed(2)),
	)
}

// finish closes the attempt, writes the audit record and decides which errors
// the batch driver sees.
func (s *SyncService) finish(ctx context.Context, a *attempt, err error) (*ledger.SyncOutcome, error) {
	rec := a.record
	var fatal error

	switch {
	case err != nil:
		failedIn := rec.State
		a.moveTo(ledger.SyncStateFailed)
		rec.ErrorMessage = err.Error()
		if errors.Is(err, ledger.ErrLocationMismatch) {
			a.logger.Warn("Order left unsynchronized, customer location rejected by ledger", zap.Error(err))
		} else {
			a.logger.Error("Order sync failed",
				zap.String("failed_in", failedIn.String()),
				zap.Error(err),
			)
			fatal = err
		}
	case rec.State == ledger.SyncStateSkipped:
		a.logger.Debug("Order already synchronized, skipping")
	default:
		a.logger.Info("Order synchronized",
			zap.String("remote_id", rec.RemoteOrderID),
			zap.Int("lines", rec.LineCount),
		)
	}
	rec.FinishedAt = s.now()

	// the audit row is written even when the caller's context is gone
	if saveErr := s.records.Save(context.WithoutCancel(ctx), rec); saveErr != nil {
		a.logger.Warn("Failed to save sync record", zap.Error(saveErr))
	}
	s.metrics.RecordOutcome(ctx, rec.State.String(), rec.Duration())

	outcome := &ledger.SyncOutcome{
		OrderID:       rec.OrderID,
		State:         rec.State,
		RemoteOrderID: rec.RemoteOrderID,
	}
	switch rec.State {
	case ledger.SyncStateFailed:
		outcome.Reason = rec.ErrorMessage
	case ledger.SyncStateSkipped:
		outcome.Reason = "order already synchronized"
	}
	return outcome, fatal
}
