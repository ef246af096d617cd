package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/ratelimit"
)

func TestLogger_RateLimitOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	store := newStubStore()
	limiter := ratelimit.NewCompositeLimiter(store)

	router := gin.New()
	router.Use(Logger())
	router.GET("/ping", RateLimit(limiter, func() []ratelimit.Rule {
		return []ratelimit.Rule{{Name: "api", Limit: 1, Window: time.Minute}}
	}, nil), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	out := buf.String()
	if !strings.Contains(out, "remaining 0") {
		t.Fatalf("allowed request should log its remaining budget, got:\n%s", out)
	}
	if !strings.Contains(out, "denied by api") {
		t.Fatalf("denied request should log the failed check, got:\n%s", out)
	}
}
