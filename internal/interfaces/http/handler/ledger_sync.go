package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/scheduler"
	"github.com/storefront/ledgersync/internal/interfaces/http/dto"
	"github.com/storefront/ledgersync/internal/interfaces/http/router"
)

// SyncHistory reads the audit trail of one order
type SyncHistory interface {
	History(ctx context.Context, orderID uuid.UUID, limit int) ([]ledger.SyncRecord, error)
}

// RecentRecords reads the latest audit rows across orders
type RecentRecords interface {
	FindRecent(ctx context.Context, state ledger.SyncState, limit int) ([]ledger.SyncRecord, error)
}

// JobQueue is the worker side of the admin API
type JobQueue interface {
	Submit(orderID uuid.UUID, source scheduler.JobSource) (scheduler.LedgerSyncJob, error)
	History(limit int) []scheduler.LedgerSyncJob
	HistoryByOrder(orderID uuid.UUID, limit int) []scheduler.LedgerSyncJob
	Pending() int
	IsRunning() bool
}

// ScanTrigger is the trigger side of the admin API
type ScanTrigger interface {
	TriggerNow() bool
	LastScan() (time.Time, scheduler.ScanResult)
}

// LedgerSyncHandler exposes manual synchronization and the sync audit trail
type LedgerSyncHandler struct {
	BaseHandler
	history SyncHistory
	records RecentRecords
	queue   JobQueue
	trigger ScanTrigger
}

// NewLedgerSyncHandler creates a new LedgerSyncHandler.
// queue and trigger may be nil when the worker is disabled.
func NewLedgerSyncHandler(history SyncHistory, records RecentRecords, queue JobQueue, trigger ScanTrigger) *LedgerSyncHandler {
	return &LedgerSyncHandler{
		history: history,
		records: records,
		queue:   queue,
		trigger: trigger,
	}
}

// Routes returns the ledger sync route group
func (h *LedgerSyncHandler) Routes() *router.DomainGroup {
	group := router.NewDomainGroup("ledger-sync", "/ledger-sync")
	group.POST("/scan", h.Scan)
	group.GET("/jobs", h.ListJobs)
	group.GET("/records", h.ListRecords)
	group.Group("orders", "/orders").
		POST("/:id", h.SyncOrder).
		GET("/:id/records", h.OrderRecords)
	return group
}

// SyncOrder queues one order for synchronization
// POST /ledger-sync/orders/:id
func (h *LedgerSyncHandler) SyncOrder(c *gin.Context) {
	orderID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if h.queue == nil {
		h.Unavailable(c, "ledger sync worker is disabled")
		return
	}

	job, err := h.queue.Submit(orderID, scheduler.JobSourceManual)
	switch {
	case err == nil:
		h.Accepted(c, job)
	case errors.Is(err, scheduler.ErrAlreadyQueued):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "order is already queued for synchronization")
	case errors.Is(err, scheduler.ErrQueueFull):
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "sync queue is full, retry later")
	case errors.Is(err, scheduler.ErrWorkerNotRunning):
		h.Unavailable(c, "ledger sync worker is not running")
	default:
		h.HandleError(c, err)
	}
}

// Scan asks the trigger to queue unsynchronized orders now
// POST /ledger-sync/scan
func (h *LedgerSyncHandler) Scan(c *gin.Context) {
	if h.trigger == nil {
		h.Unavailable(c, "ledger sync trigger is disabled")
		return
	}

	resp := ScanResponse{Requested: h.trigger.TriggerNow()}
	if at, result := h.trigger.LastScan(); !at.IsZero() {
		resp.LastScan = &at
		resp.LastStats = result
	}
	h.Accepted(c, resp)
}

// ListJobs returns recent worker jobs, optionally for one order
// GET /ledger-sync/jobs?order_id=&limit=
func (h *LedgerSyncHandler) ListJobs(c *gin.Context) {
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}
	if h.queue == nil {
		h.Success(c, JobListResponse{Jobs: []scheduler.LedgerSyncJob{}})
		return
	}

	resp := JobListResponse{
		Running: h.queue.IsRunning(),
		Pending: h.queue.Pending(),
	}
	if raw := c.Query("order_id"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "invalid order_id: must be a UUID")
			return
		}
		resp.Jobs = h.queue.HistoryByOrder(orderID, limit)
	} else {
		resp.Jobs = h.queue.History(limit)
	}
	h.Success(c, resp)
}

// OrderRecords returns the audit trail of one order, newest first
// GET /ledger-sync/orders/:id/records?limit=
func (h *LedgerSyncHandler) OrderRecords(c *gin.Context) {
	orderID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}

	records, err := h.history.History(c.Request.Context(), orderID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSyncRecordResponses(records))
}

// ListRecords returns the latest audit rows, optionally filtered by state
// GET /ledger-sync/records?state=&limit=
func (h *LedgerSyncHandler) ListRecords(c *gin.Context) {
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}
	state := ledger.SyncState(strings.ToUpper(c.Query("state")))
	if state != "" && !state.IsValid() {
		h.BadRequest(c, "invalid state: "+string(state))
		return
	}

	records, err := h.records.FindRecent(c.Request.Context(), state, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSyncRecordResponses(records))
}
