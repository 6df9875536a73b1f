package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/middleware"
)

// Deps are the collaborators the HTTP server is built from
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	DB         *gorm.DB
	// Redis is optional and only checked by the health endpoint
	Redis     *redis.Client
	Validator middleware.TokenValidator
	// Limiter is optional; without it requests are not rate limited
	Limiter middleware.Limiter
	Log     *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	http   *http.Server
	deps   Deps
	log    *zap.Logger
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) *Server {
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Log.Named("server")
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{cfg: cfg, router: router, deps: deps, log: log}

	router.GET("/health", s.health)

	page := router.Group("")
	page.Use(middleware.OptionalAuth(deps.Validator))
	if deps.Limiter != nil && cfg.RateLimit > 0 {
		page.Use(middleware.RateLimit(deps.Limiter, cfg.RateLimit, log))
	}
	page.Any("/", s.dispatch)
	page.Any("/index.php", s.dispatch)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})
	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// dispatch hands the request to the page dispatcher; unknown pages get a 404
func (s *Server) dispatch(c *gin.Context) {
	page := c.DefaultQuery("page", s.cfg.DefaultPage)
	if s.deps.Dispatcher.Dispatch(c, page, c.Request.Method) {
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("no page %q for %s", page, c.Request.Method)})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	if err := database.HealthCheck(ctx, s.deps.DB); err != nil {
		s.log.Warn("database health check failed", zap.Error(err))
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			s.log.Warn("redis health check failed", zap.Error(err))
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// Start listens on the configured address and serves until Shutdown is called
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.ServerHost, s.cfg.ServerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
