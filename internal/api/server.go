// Package api exposes the HTTP surface: health, metrics, status, manual
// trigger, recent announcements and the live stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/logger"
	"announcement-radar/internal/observability"
	"announcement-radar/internal/orchestrator"
	"announcement-radar/internal/storage"
)

const (
	// DefaultRecentLimit caps /api/v1/announcements when no limit is given.
	DefaultRecentLimit = 50
	maxRecentLimit     = 500
	healthCheckTimeout = 2 * time.Second

	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
)

// CycleRunner runs poll cycles and reports their status.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.CycleResult, error)
	Status() orchestrator.Status
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Router holds the API dependencies.
type Router struct {
	runner        CycleRunner
	announcements storage.AnnouncementStore
	hub           *Hub
	checks        map[string]HealthCheck
	recentLimit   int
	startedAt     time.Time
	log           logger.Logger
}

// Options for creating Router.
type Options struct {
	Runner        CycleRunner
	Announcements storage.AnnouncementStore
	Hub           *Hub // optional
	HealthChecks  map[string]HealthCheck
	RecentLimit   int
	Logger        logger.Logger
}

// NewRouter creates a Router.
func NewRouter(opts Options) *Router {
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{
		runner:        opts.Runner,
		announcements: opts.Announcements,
		hub:           opts.Hub,
		checks:        opts.HealthChecks,
		recentLimit:   limit,
		startedAt:     time.Now(),
		log:           log,
	}
}

// Engine builds the gin engine with every route registered.
func (r *Router) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), r.requestLogger())

	engine.GET("/health", r.handleHealth)
	engine.GET("/metrics", gin.WrapH(observability.Handler()))
	engine.GET("/status", r.handleStatus)

	v1 := engine.Group("/api/v1")
	v1.POST("/trigger", r.handleTrigger)
	v1.GET("/announcements", r.handleAnnouncements)
	if r.hub != nil {
		v1.GET("/stream", gin.WrapF(r.hub.ServeWS))
	}
	return engine
}

// NewHTTPServer wraps the engine in an http.Server.
func (r *Router) NewHTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.log.Debug("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}

func (r *Router) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := healthStatusHealthy
	code := http.StatusOK
	checks := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = healthStatusDegraded
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status        string              `json:"status"`
	Uptime        string              `json:"uptime"`
	StartedAt     time.Time           `json:"started_at"`
	StreamClients int                 `json:"stream_clients"`
	Cycle         orchestrator.Status `json:"cycle"`
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(r.startedAt).Round(time.Second).String(),
		StartedAt: r.startedAt,
		Cycle:     r.runner.Status(),
	}
	if r.hub != nil {
		resp.StreamClients = r.hub.Len()
	}
	c.JSON(http.StatusOK, resp)
}

// handleTrigger runs one cycle synchronously. The cycle is detached from the
// request so a disconnecting client cannot cancel it.
func (r *Router) handleTrigger(c *gin.Context) {
	result, err := r.runner.RunCycle(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		r.log.Error("triggered poll cycle failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "poll cycle failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result})
}

func (r *Router) handleAnnouncements(c *gin.Context) {
	category := domain.Category(c.Query("type"))
	if category != "" && !category.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown announcement type"})
		return
	}

	limit := r.recentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	rows, err := r.announcements.ListRecent(c.Request.Context(), category, limit)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.log.Error("list announcements failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "list announcements failed"})
		return
	}

	items := make([]AnnouncementResponse, 0, len(rows))
	for _, a := range rows {
		items = append(items, toAnnouncementResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"announcements": items, "count": len(items)})
}
