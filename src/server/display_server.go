package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"daq-observer/src/logger"
	"daq-observer/src/models"
	"daq-observer/src/pipeline"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DisplayServer
// -----------------------------------------------------------------------------

type DisplayServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MDisplayFrame // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestFrame *models.MDisplayFrame
	stateMutex  sync.RWMutex

	pipe *pipeline.Pipeline
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDisplayServer(cfg *models.MConfig, logger *logger.Logger) *DisplayServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DisplayServer{
		Config:  cfg,
		Logger:  logger,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		// Queue size of 256 ensures we can handle bursts of updates
		broadcast:  make(chan *models.MDisplayFrame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestFrame: &models.MDisplayFrame{
			Type:       "INITIAL",
			AlertLevel: models.AlertInfo,
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// AttachPipeline connects the control endpoints to a live pipeline. Without
// it the server still serves frames pushed through the exchanger interface.
func (s *DisplayServer) AttachPipeline(p *pipeline.Pipeline) {
	s.pipe = p
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DisplayServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/alerts", s.getAlerts)
	s.engine.POST("/api/export", s.postExport)
	s.engine.POST("/api/benchmark/:name", s.postBenchmark)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *DisplayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *DisplayServer) getMetrics(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(200, s.latestFrame.Metrics)
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"device":         s.Config.Acquisition.DeviceName,
		"channels":       s.Config.Acquisition.Channels,
		"sample_rate_hz": s.Config.Acquisition.SampleRateHz,
		"refresh_hz":     s.Config.Display.RefreshHz,
		"fft_length":     s.Config.Processing.FFTLength,
		"window_type":    s.Config.Processing.WindowType,
	})
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.latestFrame.Timestamp
	runID := s.latestFrame.RunID
	s.stateMutex.RUnlock()

	health := gin.H{
		"status":        "ok",
		"connections":   connections,
		"latest_update": timestamp,
		"run_id":        runID,
	}
	if s.pipe != nil {
		health["mode"] = string(s.pipe.Mode())
		health["devices"] = []string{s.pipe.Source.Name()}
	}
	c.JSON(200, health)
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getAlerts(c *gin.Context) {
	if s.pipe == nil {
		c.JSON(503, gin.H{"error": "no active pipeline"})
		return
	}
	c.JSON(200, s.pipe.Monitor.History())
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) postExport(c *gin.Context) {
	if s.pipe == nil {
		c.JSON(503, gin.H{"error": "no active pipeline"})
		return
	}
	if err := s.pipe.ExportWindow(); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "exported", "run_id": s.pipe.RunID()})
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) postBenchmark(c *gin.Context) {
	if s.pipe == nil {
		c.JSON(503, gin.H{"error": "no active pipeline"})
		return
	}

	durationMs, err := strconv.Atoi(c.DefaultQuery("duration_ms", "500"))
	if err != nil || durationMs <= 0 || durationMs > 10000 {
		c.JSON(400, gin.H{"error": "duration_ms must be in (0, 10000]"})
		return
	}
	d := time.Duration(durationMs) * time.Millisecond

	switch c.Param("name") {
	case "ring_buffer":
		c.JSON(200, s.pipe.Monitor.BenchmarkRingBuffer(d))
	case "processor":
		c.JSON(200, s.pipe.Monitor.BenchmarkProcessor(d))
	default:
		c.JSON(404, gin.H{"error": "unknown benchmark, use ring_buffer or processor"})
	}
}
