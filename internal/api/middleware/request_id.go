package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/pkg/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxClientRequestID bounds IDs accepted from clients.
const maxClientRequestID = 128

type requestIDKey struct{}

// RequestID tags every request with an ID, taken from X-Request-ID when the
// client sent a usable one and generated (UUIDv7) otherwise. The ID is echoed
// in the response and bound to the request's logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxClientRequestID {
			id = uuid.Must(uuid.NewV7()).String()
		}
		c.Header(RequestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
		ctx = logger.NewContext(ctx, zap.String("request_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
