package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/storefront/ledgersync/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
	assert.Equal(t, "v2", NewRouter(gin.New(), WithAPIVersion("v2")).apiVersion)
}

func TestRouterSetup_DomainGroups(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("ledger-sync", "/ledger-sync")
	group.GET("/jobs", func(c *gin.Context) { c.String(http.StatusOK, "jobs") }).
		POST("/scan", func(c *gin.Context) { c.String(http.StatusAccepted, "scan") })
	group.Group("orders", "/orders").
		GET("/:id/records", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	NewRouter(engine).Register(group).Setup()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/api/v1/ledger-sync/jobs", http.StatusOK, "jobs"},
		{http.MethodPost, "/api/v1/ledger-sync/scan", http.StatusAccepted, "scan"},
		{http.MethodGet, "/api/v1/ledger-sync/orders/abc/records", http.StatusOK, "abc"},
		{http.MethodGet, "/api/v1/ledger-sync/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}

	assert.Equal(t, "ledger-sync", group.Name())
	assert.Equal(t, "/ledger-sync", group.Prefix())
}

func TestNewEngine_Middleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := NewEngine(EngineOptions{ServiceName: "ledgersync", Logger: zap.New(core), Tracing: true})
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })
	engine.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, logger.GetRequestID(c.Request.Context())) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(logger.RequestIDHeader, "req-42")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(logger.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.NotZero(t, logs.Len())
}
