package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/infrastructure/logger"
	"github.com/storefront/ledgersync/internal/interfaces/http/dto"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the request id middleware
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unavailable sends a 503 response
func (h *BaseHandler) Unavailable(c *gin.Context, message string) {
	h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, message)
}

// HandleError converts sync errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	code := dto.ErrorCodeFor(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
		message = "internal error"
	}
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// parseUUIDParam reads a UUID path parameter
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseLimit reads the limit query parameter, clamped to maxListLimit
func (h *BaseHandler) parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.BadRequest(c, "invalid limit: must be a positive integer")
		return 0, false
	}
	return min(limit, maxListLimit), true
}
