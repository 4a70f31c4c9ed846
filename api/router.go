package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/browserd/api/handler"
	"github.com/use-agent/browserd/api/middleware"
	"github.com/use-agent/browserd/config"
	"github.com/use-agent/browserd/pool"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
// The surface is read-only: sessions are created and closed over MCP, the HTTP
// API only observes them.
func NewRouter(m *pool.Manager, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(m, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Sessions
	protected.GET("/sessions", handler.ListSessions(m))
	protected.GET("/sessions/:id", handler.GetSession(m))

	return r
}
