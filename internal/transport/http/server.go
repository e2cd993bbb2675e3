// Package journalhttp is the thin HTTP surface over the sync core. The
// core stays a library; everything here is request plumbing: identity
// resolution, rate limiting, and JSON in/out.
package journalhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradevault/internal/logger"
	"tradevault/internal/ratelimit"
	"tradevault/internal/registry"
	"tradevault/internal/store"
	"tradevault/internal/store/synclog"
	syncsvc "tradevault/internal/sync"
)

// IdentityResolver maps a request to the authenticated user id. The
// identity provider itself is external; absent identity means every
// core operation is refused with 401.
type IdentityResolver func(c *gin.Context) (string, bool)

// HeaderIdentity resolves the user from a bearer-style header via the
// supplied token validator.
func HeaderIdentity(validate func(token string) (string, error)) IdentityResolver {
	return func(c *gin.Context) (string, bool) {
		token := c.GetHeader("Authorization")
		if token == "" {
			return "", false
		}
		const prefix = "Bearer "
		if len(token) > len(prefix) && token[:len(prefix)] == prefix {
			token = token[len(prefix):]
		}
		userID, err := validate(token)
		if err != nil || userID == "" {
			return "", false
		}
		return userID, true
	}
}

type ServerConfig struct {
	Addr         string
	Identity     IdentityResolver
	Store        store.Store
	Registry     *registry.Registry
	Orchestrator *syncsvc.Orchestrator
	Limiter      *ratelimit.Limiter
	SyncLog      *synclog.Store

	// Rate-limit policy applied to write endpoints.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

type Server struct {
	addr   string
	router *gin.Engine
	http   *http.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Identity == nil {
		return nil, errors.New("http server requires an identity resolver")
	}
	if cfg.Store == nil || cfg.Registry == nil || cfg.Orchestrator == nil {
		return nil, errors.New("http server requires store, registry and orchestrator")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8087"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := NewRouter(cfg)
	api.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}
