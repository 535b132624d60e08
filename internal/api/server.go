package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"otc-signal-bot/internal/auth"
	"otc-signal-bot/internal/cache"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/jobs"
	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/metrics"
	"otc-signal-bot/internal/signals"
)

// PairAnalyzer is the part of the signal generator the API exposes
type PairAnalyzer interface {
	Pairs() []string
	Analyze(ctx context.Context, symbol string, relaxed bool) (*signals.Candidate, error)
}

// ManagerStatus reports the generation loop state
type ManagerStatus interface {
	Status() signals.Status
}

// JobStatus reports the background job state
type JobStatus interface {
	Status() []jobs.JobStatus
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	Debug          bool
	MetricsPath    string
}

// Dependencies are the components served by the API. Only Store is required.
type Dependencies struct {
	Store    database.Store
	Bus      *events.EventBus
	Analyzer PairAnalyzer
	Manager  ManagerStatus
	Jobs     JobStatus
	Cache    *cache.SignalCache
	JWT      *auth.JWTManager // nil disables authentication
	Metrics  *metrics.Metrics
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	deps        Dependencies
	hub         *WSHub
	rateLimiter *RateLimiter
	startedAt   time.Time
	logger      *logging.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Dependencies) *Server {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		config:    config,
		deps:      deps,
		hub:       NewWSHub(),
		startedAt: time.Now(),
		logger:    logging.WithComponent("api"),
	}
	if config.RateLimit > 0 {
		s.rateLimiter = NewRateLimiter(config.RateLimit, config.RateBurst)
	}

	router.Use(s.requestLogger())
	if deps.Metrics != nil {
		router.Use(s.metricsMiddleware())
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *WSHub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	if s.rateLimiter != nil {
		api.Use(s.rateLimitMiddleware())
	}
	if s.deps.JWT != nil {
		api.Use(auth.Middleware(s.deps.JWT))
	}
	{
		api.GET("/pairs", s.handleGetPairs)
		api.GET("/signals", s.handleListSignals)
		api.GET("/signals/latest", s.handleLatestSignal)
		api.GET("/signals/:id", s.handleGetSignal)
		api.GET("/stats", s.handleGetStats)
		api.GET("/analyze/:pair", s.handleAnalyzePair)
	}

	admin := api.Group("/manager")
	if s.deps.JWT != nil {
		admin.Use(auth.RequireAdmin())
	}
	admin.GET("/status", s.handleManagerStatus)

	ws := s.router.Group("/ws")
	if s.deps.JWT != nil {
		ws.Use(s.wsAuth())
	}
	ws.GET("", s.handleWebSocket)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   true,
			"message": "endpoint not found",
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	})
}

// Start subscribes the websocket hub and serves HTTP until Shutdown
func (s *Server) Start(ctx context.Context) error {
	s.startHub(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.hub.CloseAll()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) startHub(ctx context.Context) {
	go s.hub.Run(ctx)
	if s.deps.Bus != nil {
		s.hub.Subscribe(s.deps.Bus)
	}
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
