package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is where the request ID lives in the gin context.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an ID, honoring an inbound
// X-Request-ID header so callers can correlate across services. The ID is
// echoed back in the response header and in the envelope metadata.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
