package proxy

import (
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/circuitbreaker"
	"github.com/quotaguard/gateway/internal/upstream"
)

// Proxy forwards allowed requests to a pool of upstream targets. The
// limiter runs in front of it; the proxy only sees traffic that passed
// every check.
type Proxy struct {
	targets  []string
	proxies  map[string]*httputil.ReverseProxy
	breaker  *circuitbreaker.CircuitBreaker
	strategy upstream.Strategy
	prober   *upstream.Prober
}

type Config struct {
	Targets  []string
	Strategy string
	Breaker  circuitbreaker.Config
	Prober   upstream.ProberConfig
}

func New(cfg Config) (*Proxy, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("at least one target is required")
	}

	strategy, err := upstream.NewStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	proxies := make(map[string]*httputil.ReverseProxy, len(cfg.Targets))
	for _, targetURL := range cfg.Targets {
		target, err := url.Parse(targetURL)
		if err != nil {
			return nil, err
		}
		proxies[targetURL] = httputil.NewSingleHostReverseProxy(target)
	}

	prober := upstream.NewProber(cfg.Targets, cfg.Prober)
	prober.Start()

	p := &Proxy{
		targets:  cfg.Targets,
		proxies:  proxies,
		breaker:  circuitbreaker.New(cfg.Breaker),
		strategy: strategy,
		prober:   prober,
	}

	log.Printf("Proxy initialized with %d targets, strategy: %s", len(cfg.Targets), strategy.Name())

	return p, nil
}

// Handle forwards the request to a healthy upstream target
func (p *Proxy) Handle(c *gin.Context) {
	healthy := p.prober.Healthy()
	if len(healthy) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No healthy backend servers available",
		})
		return
	}

	selected := p.strategy.Next(healthy)
	targetProxy, ok := p.proxies[selected]
	if !ok {
		log.Printf("No proxy registered for target %s", selected)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to select backend server",
		})
		return
	}

	if lc, isLC := p.strategy.(*upstream.LeastConnections); isLC {
		lc.Acquire(selected)
		defer lc.Release(selected)
	}

	target, _ := url.Parse(selected)

	err := p.breaker.Do(func() error {
		recorder := &statusRecorder{ResponseWriter: c.Writer, statusCode: http.StatusOK}

		req := c.Request
		req.URL.Host = target.Host
		req.URL.Scheme = target.Scheme
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Host = target.Host

		c.Header("X-Backend-Server", selected)
		c.Writer = recorder

		targetProxy.ServeHTTP(c.Writer, req)

		// A 5xx from the backend counts against the breaker
		if recorder.statusCode >= 500 {
			return errors.New("backend error")
		}

		return nil
	})

	if err == circuitbreaker.ErrCircuitOpen {
		log.Printf("Circuit breaker open for %s", selected)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
	}
}

// BreakerState returns the current circuit breaker state
func (p *Proxy) BreakerState() circuitbreaker.State {
	return p.breaker.State()
}

// ResetBreaker forces the circuit breaker closed
func (p *Proxy) ResetBreaker() {
	p.breaker.Reset()
}

// TargetStatus returns the health snapshot of all targets
func (p *Proxy) TargetStatus() []upstream.TargetStatus {
	return p.prober.Status()
}

// Stop halts background health probing
func (p *Proxy) Stop() {
	p.prober.Stop()
}

// statusRecorder captures the response status code for the breaker
type statusRecorder struct {
	gin.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
