package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront/ledgersync/internal/interfaces/http/dto"
)

// DefaultMaxBodyBytes bounds admin API request bodies
const DefaultMaxBodyBytes int64 = 1 << 20

// Secure returns a middleware that sets security headers for the admin API
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
				dto.ErrCodeRequestTooBig,
				"Request body exceeds maximum allowed size",
				c.GetString("request_id"),
			))
			return
		}

		// streaming requests may not declare a length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
