package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/ratelimit"
	"github.com/quotaguard/gateway/internal/service"
)

// RuleSource yields the ordered rules a route is checked against.
// Resolved per request so admin profile updates apply without restart.
type RuleSource func() []ratelimit.Rule

// RateLimit enforces the given rule profiles for every request on the
// route. Denials become 429 responses with Retry-After and
// X-Rate-Limit-* headers; limiter-internal failures are swallowed and
// treated as allow so a limiter bug can never take down legitimate
// traffic.
func RateLimit(limiter *ratelimit.CompositeLimiter, rules RuleSource, violations *service.ViolationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := ratelimit.Identify(ratelimit.RequestMeta{
			Headers:    c.Request.Header,
			RemoteAddr: c.Request.RemoteAddr,
			UserID:     c.GetString("user_id"),
		})

		check, err := limiter.Check(c.Request.Context(), identifier, rules())
		if err != nil {
			log.Printf("WARN: rate limit check failed for %s, allowing: %v", identifier, err)
			c.Next()
			return
		}

		if check.Allowed {
			if check.Result != nil {
				c.Header("X-Rate-Limit-Limit", fmt.Sprintf("%d", check.Result.Limit))
				c.Header("X-Rate-Limit-Remaining", fmt.Sprintf("%d", check.Result.Remaining))
			}
			c.Next()
			return
		}

		denial := &ratelimit.RateLimitError{
			RetryAfter:  check.Result.RetryAfter,
			Limit:       check.Result.Limit,
			Remaining:   0,
			FailedCheck: check.FailedCheck,
		}
		c.Set("failed_check", check.FailedCheck)

		if violations != nil {
			violations.Record(models.Violation{
				Identifier:  identifier,
				FailedCheck: check.FailedCheck,
				Method:      c.Request.Method,
				Path:        c.Request.URL.Path,
				RetryAfter:  int(denial.RetryAfter.Seconds()),
			})
		}

		// A block spans all rules, so there is no single rule limit to
		// advertise on that path.
		if check.FailedCheck != ratelimit.FailedCheckBlocked {
			c.Header("X-Rate-Limit-Limit", fmt.Sprintf("%d", denial.Limit))
		}
		c.Header("X-Rate-Limit-Remaining", "0")
		c.Header("Retry-After", fmt.Sprintf("%d", int(denial.RetryAfter.Seconds())))

		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RateLimitError",
				"message": denial.Error(),
			},
		})
		c.Abort()
	}
}
