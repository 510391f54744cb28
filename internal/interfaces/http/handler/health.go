package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storefront/ledgersync/internal/infrastructure/persistence"
	"github.com/storefront/ledgersync/internal/interfaces/http/dto"
)

// DatabaseProbe reports database reachability
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	BaseHandler
	db        DatabaseProbe
	queue     JobQueue
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                       `json:"status"`
	Name      string                       `json:"name"`
	Version   string                       `json:"version"`
	GoVersion string                       `json:"go_version"`
	Uptime    string                       `json:"uptime"`
	Database  string                       `json:"database"`
	Pool      *persistence.ConnectionStats `json:"pool,omitempty"`
	Worker    *WorkerHealth                `json:"worker,omitempty"`
}

// WorkerHealth summarizes the sync worker
type WorkerHealth struct {
	Running bool `json:"running"`
	Pending int  `json:"pending"`
}

// NewHealthHandler creates a new HealthHandler. queue may be nil.
func NewHealthHandler(db DatabaseProbe, queue JobQueue, name, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queue:     queue,
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// Health reports process and database health
// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Database:  "up",
	}
	if h.queue != nil {
		resp.Worker = &WorkerHealth{Running: h.queue.IsRunning(), Pending: h.queue.Pending()}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	} else if stats, err := h.db.Stats(); err == nil {
		resp.Pool = &stats
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
