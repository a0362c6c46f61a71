package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/resilience"
)

// StreamLimit holds a bulkhead slot for the duration of a streaming route.
// When no slot frees up in time the request is refused with a 503 before any
// response byte is written. A nil bulkhead disables the limit.
func StreamLimit(b *resilience.Bulkhead) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b == nil {
			c.Next()
			return
		}
		release, err := b.Acquire(c.Request.Context())
		if err != nil {
			appErr, ok := errors.AsAppError(err)
			if !ok {
				appErr = errors.ServiceUnavailable("stream limiter")
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		defer release()
		c.Next()
	}
}
