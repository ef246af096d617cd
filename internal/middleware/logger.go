package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request including the rate limit outcome:
// the remaining budget on allowed requests, the failed check on
// denials.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		requestID := c.GetString("request_id")

		line := fmt.Sprintf("[%s] %s %s - %d - %v - %s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			c.ClientIP(),
		)

		if failed := c.GetString("failed_check"); failed != "" {
			line += " - denied by " + failed
		} else if remaining := c.Writer.Header().Get("X-Rate-Limit-Remaining"); remaining != "" {
			line += " - remaining " + remaining
		}

		log.Println(line)
	}
}
