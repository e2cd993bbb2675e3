package journalhttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradevault/internal/ratelimit"
	"tradevault/internal/registry"
	"tradevault/internal/store"
	"tradevault/internal/store/synclog"
	syncsvc "tradevault/internal/sync"
)

const userIDKey = "tv.userID"

type Router struct {
	identity     IdentityResolver
	store        store.Store
	registry     *registry.Registry
	orchestrator *syncsvc.Orchestrator
	limiter      *ratelimit.Limiter
	syncLog      *synclog.Store

	rlMax    int
	rlWindow time.Duration
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		identity:     cfg.Identity,
		store:        cfg.Store,
		registry:     cfg.Registry,
		orchestrator: cfg.Orchestrator,
		limiter:      cfg.Limiter,
		syncLog:      cfg.SyncLog,
		rlMax:        cfg.RateLimitMax,
		rlWindow:     cfg.RateLimitWindow,
	}
}

// Register mounts the journal API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	group.Use(r.authMiddleware())

	group.POST("/trades", r.rateLimited("trade_write"), r.handleCreateTrade)
	group.POST("/trades/bulk", r.rateLimited("trade_bulk"), r.handleBulkImport)
	group.GET("/trades", r.handleListTrades)

	group.GET("/connections", r.handleListConnections)
	group.POST("/connections", r.rateLimited("connection_write"), r.handleAddConnection)
	group.PATCH("/connections/:id", r.rateLimited("connection_write"), r.handleUpdateConnection)
	group.DELETE("/connections/:id", r.rateLimited("connection_write"), r.handleDeleteConnection)
	group.GET("/connections/:id/history", r.handleSyncHistory)

	group.POST("/connections/:id/sync", r.rateLimited("sync"), r.handleSyncOne)
	group.POST("/sync", r.rateLimited("sync"), r.handleSyncAll)
	group.POST("/sync/auto", r.handleAutoSync)
}

// authMiddleware resolves the user or refuses the request. No identity,
// no core operations.
func (r *Router) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := r.identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// rateLimited consults the window limiter for one named action. Refusal
// is a 429, not an error inside the core.
func (r *Router) rateLimited(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.limiter == nil {
			c.Next()
			return
		}
		userID := c.GetString(userIDKey)
		if !r.limiter.Allow(userID, action, r.rlMax, r.rlWindow) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
