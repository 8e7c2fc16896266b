package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/middleware"
	"github.com/opsledger/opsledger/internal/store"
	"github.com/opsledger/opsledger/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Registry    *store.Registry
	Hub         *ws.Hub
	Mutator     domain.Mutator
	Entities    domain.EntityService
	Chain       domain.ChainService
	Syncer      domain.SyncService
	SyncControl SyncControl // nil when no sync worker is running
	CORSOrigins []string
	Version     string
}

// maxBodySize limits write request bodies.
const maxBodySize = 10 << 20 // 10 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", middleware.TenantIDHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Registry, log, deps.Version)
	collections := NewCollectionHandler(deps.Mutator, deps.Entities, log)
	audit := NewAuditHandler(deps.Chain, log)
	sync := NewSyncHandler(deps.Syncer, deps.SyncControl, log)

	// Health and readiness carry no tenant scope.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Connectivity and pass scheduling are process-wide, not per tenant.
	api.POST("/sync/run", sync.Run)
	api.POST("/sync/online", sync.SetOnline)

	// Everything below operates on one tenant's store.
	api.Use(middleware.TenantMiddleware())

	// Collections.
	api.GET("/collections/:collection", collections.List)
	api.GET("/collections/:collection/:id", collections.Get)
	api.PUT("/collections/:collection/:id", collections.Put)
	api.DELETE("/collections/:collection/:id", collections.Delete)

	// Audit chain.
	api.GET("/audit", audit.Query)
	api.GET("/audit/verify", audit.Verify)
	api.POST("/audit/expire", audit.Expire)
	api.PUT("/audit/:id/hold", audit.SetLegalHold)

	// Sync queue.
	api.GET("/sync/status", sync.Status)
	api.GET("/sync/failed", sync.ListFailed)
	api.POST("/sync/failed/:id/retry", sync.RetryFailed)
	api.DELETE("/sync/failed/:id", sync.ClearFailed)
	api.GET("/sync/conflicts", sync.Conflicts)
	api.POST("/sync/conflicts/:id/resolve", sync.Resolve)

	// WebSocket endpoint.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
