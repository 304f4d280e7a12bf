// Package api exposes the trading dashboard over HTTP: market data and
// strategy analysis under /api, operational endpoints under /monitoring,
// and a price feed websocket under /ws.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mvpforex/config"
	"mvpforex/internal/ai/llm"
	"mvpforex/internal/analysis"
	"mvpforex/internal/cache"
	"mvpforex/internal/database"
	"mvpforex/internal/events"
	"mvpforex/internal/logging"
	"mvpforex/internal/oanda"
	"mvpforex/internal/secrets"
)

// Version is reported by /monitoring/status.
const Version = "1.0.0"

// RateLimiter implements a sliding-window request limit per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	max      int
	window   time.Duration
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		max:      max,
		window:   window,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. Timestamps outside the window are pruned on every call.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.max {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Server is the HTTP API server.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
	logger *logging.Logger

	provider oanda.CandleProvider
	analyzer *analysis.Analyzer
	strategy *llm.StrategyAnalyzer
	cache    *cache.CacheService
	db       *database.DB
	repo     *database.Repository
	secrets  *secrets.Source
	stream   *oanda.StreamManager
	eventBus *events.EventBus

	wsHub     *WSHub
	limiter   *RateLimiter
	startTime time.Time
}

// NewServer wires the HTTP layer over its collaborators. cache, db,
// secretSource, and stream may be nil when the corresponding subsystem is
// disabled; the handlers degrade gracefully.
func NewServer(
	cfg *config.Config,
	provider oanda.CandleProvider,
	analyzer *analysis.Analyzer,
	strategy *llm.StrategyAnalyzer,
	cacheService *cache.CacheService,
	db *database.DB,
	secretSource *secrets.Source,
	stream *oanda.StreamManager,
	bus *events.EventBus,
	logger *logging.Logger,
) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger.WithComponent("api"),
		provider:  provider,
		analyzer:  analyzer,
		strategy:  strategy,
		cache:     cacheService,
		db:        db,
		secrets:   secretSource,
		stream:    stream,
		eventBus:  bus,
		limiter:   NewRateLimiter(cfg.ServerConfig.RateLimitPerMin, time.Minute),
		startTime: time.Now(),
	}
	if db != nil {
		s.repo = database.NewRepository(db)
	}

	s.wsHub = NewWSHub(s.logger)
	go s.wsHub.Run()
	s.wireEvents()

	s.router = gin.New()
	s.router.Use(gin.Logger(), gin.Recovery())
	s.router.Use(cors.New(s.corsConfig()))
	s.setupRoutes()

	return s
}

func (s *Server) corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	origins := strings.Split(s.config.ServerConfig.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Admin-Key"}
	return corsConfig
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/market-data", s.handleMarketData)
		api.POST("/analyze/:provider", s.handleAnalyze)
		api.POST("/feedback", s.handleSaveFeedback)
		api.GET("/feedback", s.handleFeedbackSummary)
		api.GET("/feedback/:model", s.handleFeedbackByModel)
		api.GET("/runs", s.handleRecentRuns)
		api.GET("/providers", s.handleProviders)
	}

	monitoring := s.router.Group("/monitoring")
	{
		monitoring.GET("/status", s.handleStatus)
		monitoring.GET("/health", s.adminAuthMiddleware(), s.handleHealth)
		monitoring.GET("/metrics", s.adminAuthMiddleware(), s.handleMetrics)
	}

	s.router.GET("/ws/prices", s.handlePriceSocket)
}

// clientKey identifies the caller for rate limiting. Behind a proxy the
// first X-Forwarded-For entry is the original client.
func (s *Server) clientKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := s.clientKey(c)
		if !s.limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded", "client", key, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error":  "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// adminAuthMiddleware gates operational endpoints behind the X-Admin-Key
// header. An unset admin key keeps the endpoints closed.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminKey := s.config.ServerConfig.AdminAPIKey
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// wireEvents forwards bus events to connected websocket clients. The hub
// receives everything; the frontend filters by event type.
func (s *Server) wireEvents() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.SubscribeAll(func(e events.Event) {
		s.wsHub.Broadcast(e)
	})
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.ServerConfig.Host, s.config.ServerConfig.Port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.ServerConfig.WriteTimeout) * time.Second,
	}

	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
