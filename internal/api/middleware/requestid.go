package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the correlation id.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the correlation id.
const requestIDKey = "request_id"

// RequestID assigns each request a correlation id, honoring one supplied by
// the caller. The id is echoed in the response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the correlation id assigned to the request, empty
// when the middleware is not installed.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
