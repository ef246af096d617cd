package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/config"
	"github.com/quotaguard/gateway/internal/handler"
	"github.com/quotaguard/gateway/internal/middleware"
	"github.com/quotaguard/gateway/internal/proxy"
	"github.com/quotaguard/gateway/internal/ratelimit"
	"github.com/quotaguard/gateway/internal/repository"
	"github.com/quotaguard/gateway/internal/service"
	"github.com/quotaguard/gateway/internal/storage"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	limiter    *ratelimit.CompositeLimiter
	rules      *service.RuleService
	violations *service.ViolationService
	proxies    map[string]*proxy.Proxy
	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	localRules := make([]ratelimit.Rule, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		localRules = append(localRules, p.Rule())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rules, err := service.NewRuleService(ctx, repository.NewProfileRepository(postgres), localRules)
	if err != nil {
		return nil, err
	}

	violations := service.NewViolationService(repository.NewViolationRepository(postgres), 1000)
	authService := service.NewAuthService(repository.NewUserRepository(postgres), cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryHours)
	limiter := ratelimit.NewCompositeLimiter(redis)

	s := &Server{
		router:     router,
		config:     cfg,
		redis:      redis,
		postgres:   postgres,
		limiter:    limiter,
		rules:      rules,
		violations: violations,
		proxies:    make(map[string]*proxy.Proxy),
	}

	if err := s.initializeProxies(); err != nil {
		return nil, err
	}

	s.setupMiddleware(authService)
	s.setupRoutes(authService)

	return s, nil
}

func (s *Server) initializeProxies() error {
	for _, svc := range s.config.Services {
		p, err := proxy.New(proxy.Config{
			Targets:  svc.Targets,
			Strategy: svc.Strategy,
		})
		if err != nil {
			return err
		}

		s.proxies[svc.Path] = p
		log.Printf("Initialized proxy for %s -> %v", svc.Path, svc.Targets)
	}

	return nil
}

func (s *Server) setupMiddleware(authService *service.AuthService) {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Identity(authService))
}

// limit builds the rate limit middleware for an ordered profile list.
// Names resolve per request so admin updates take effect immediately.
func (s *Server) limit(profiles ...string) gin.HandlerFunc {
	return middleware.RateLimit(s.limiter, func() []ratelimit.Rule {
		return s.rules.Resolve(profiles...)
	}, s.violations)
}

func (s *Server) setupRoutes(authService *service.AuthService) {
	authHandler := handler.NewAuthHandler(authService)
	ruleHandler := handler.NewRuleHandler(s.rules)
	violationHandler := handler.NewViolationHandler(s.violations)

	s.router.GET("/health", s.healthCheck)

	// Credential endpoints carry the auth profile: 5 attempts per 15
	// minutes, then a one-hour block.
	auth := s.router.Group("/auth")
	auth.Use(s.limit("global", "auth"))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Reading the own account is not a credential attempt, so it runs
	// under the global ceiling only.
	s.router.GET("/auth/me", middleware.RequireAuth(authService), s.limit("global"), authHandler.Me)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(authService))
	admin.Use(middleware.RequireRole("admin"))
	admin.Use(s.limit("global", "strict"))
	{
		admin.GET("/status", s.adminStatus)
		admin.GET("/rules", ruleHandler.List)
		admin.PUT("/rules", ruleHandler.Upsert)
		admin.DELETE("/rules/:name", ruleHandler.Delete)
		admin.GET("/violations", violationHandler.Recent)
		admin.GET("/violations/summary", violationHandler.Summary)
	}

	s.setupProxyRoutes()
}

func (s *Server) setupProxyRoutes() {
	for _, svc := range s.config.Services {
		p := s.proxies[svc.Path]
		limitMW := s.limit(s.serviceProfiles(svc)...)

		handle := func(c *gin.Context) {
			p.Handle(c)
		}

		s.router.Any(svc.Path+"/*proxyPath", limitMW, handle)
		s.router.Any(svc.Path, limitMW, handle)

		log.Printf("Registered proxy route: %s (profiles: %v)", svc.Path, s.serviceProfiles(svc))
	}
}

// serviceProfiles returns the ordered profile names for a service,
// defaulting to the global ceiling plus a per-resource profile named
// after the route.
func (s *Server) serviceProfiles(svc config.ServiceConfig) []string {
	if len(svc.Profiles) > 0 {
		return svc.Profiles
	}

	resource := strings.Trim(svc.Path, "/")
	if resource == "" {
		resource = "default"
	}

	return []string{"global", resource}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	// A dead Redis degrades enforcement (fail-open) but not traffic
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "quotaguard-gateway",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":         redisHealthy,
			"redis_breaker": s.redis.BreakerState(),
			"database":      dbHealthy,
		},
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	upstreams := make(map[string]interface{}, len(s.proxies))
	for path, p := range s.proxies {
		upstreams[path] = gin.H{
			"breaker": p.BreakerState().String(),
			"targets": p.TargetStatus(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"services":  len(s.config.Services),
		"rules":     len(s.rules.List()),
		"uptime":    time.Since(startTime).Seconds(),
		"upstreams": upstreams,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting QuotaGuard gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	for _, p := range s.proxies {
		p.Stop()
	}
	s.violations.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
