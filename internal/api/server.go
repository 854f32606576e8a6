// Package api exposes the browse engine and the stateless transforms over
// HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/cache"
	"github.com/mkerring/pagetrace/internal/config"
	"github.com/mkerring/pagetrace/internal/observability"
	"github.com/mkerring/pagetrace/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionRunner is the slice of the session layer the handlers consume.
// *session.Runner implements it; tests substitute fakes.
type SessionRunner interface {
	Run(ctx context.Context, target session.Target, engineName string, opts session.Options) (*schemas.Snapshot, error)
	CaptureScreenshot(ctx context.Context, url string, fullPage bool) (shot []byte, finalURL string, err error)
	RecordVideo(ctx context.Context, url, engineName string, width, height int) ([]byte, error)
}

// Server wires the HTTP surface: routing, middleware, caching, and the
// concurrency bound on simultaneous browser sessions.
type Server struct {
	cfg     *config.Config
	runner  SessionRunner
	store   *cache.Store
	metrics *observability.Metrics
	log     *zap.Logger

	// sessions bounds concurrently running browser sessions across all
	// endpoints that launch one.
	sessions *semaphore.Weighted
	// inflight collapses concurrent identical browse requests onto one
	// session; both callers get the same snapshot.
	inflight singleflight.Group

	engine *gin.Engine
}

// NewServer assembles the router and all middleware.
func NewServer(cfg *config.Config, runner SessionRunner, store *cache.Store, metrics *observability.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		metrics:  metrics,
		log:      logger.Named("api"),
		sessions: semaphore.NewWeighted(int64(cfg.Browser.Concurrency)),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(s.log))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))
	if cfg.Server.EnableCORS {
		engine.Use(cors.Default())
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	authed := engine.Group("/", bearerAuth(cfg.Server.AuthToken))
	authed.GET("/browse", s.handleBrowse)
	authed.GET("/screenshot", s.handleScreenshot)
	authed.GET("/video", s.handleVideo)
	authed.POST("/minimize", s.handleMinimize)
	authed.POST("/extract_text", s.handleExtractText)
	authed.POST("/reader", s.handleReader)
	authed.POST("/markdown", s.handleMarkdown)

	s.engine = engine
	return s
}

// Handler exposes the underlying http.Handler; tests drive it directly.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening.", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.log.Info("Shutting down HTTP server.")
	return srv.Shutdown(shutdownCtx)
}

// acquireSession blocks until a session slot is free or the request dies.
func (s *Server) acquireSession(ctx context.Context) error {
	return s.sessions.Acquire(ctx, 1)
}

func (s *Server) releaseSession() {
	s.sessions.Release(1)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("Request handled.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, schemas.ErrorResponse{Error: msg})
}
