package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the correlation ID echoed on every response.
	RequestIDHeader = "X-Request-ID"
	// CtxRequestIDKey stores the correlation ID on the gin context.
	CtxRequestIDKey = "request_id"
)

// RequestID keeps an inbound X-Request-ID when it is a UUID and otherwise assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(CtxRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
