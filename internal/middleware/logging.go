package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thereayou/loci-chat/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := base.With().
			Str(logger.FieldRequestID, reqID).
			Str(logger.FieldMethod, c.Request.Method).
			Str(logger.FieldPath, c.Request.URL.Path).
			Str(logger.FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		evt := child.Info()
		if status >= 500 {
			evt = child.Error()
		}
		evt = evt.Int(logger.FieldStatus, status).Dur(logger.FieldLatency, time.Since(start))

		if userID, ok := c.Get(UserIDKey); ok {
			if id, ok := userID.(uuid.UUID); ok {
				evt = evt.Str(logger.FieldUserID, id.String())
			}
		}
		evt.Msg("request completed")
	}
}
