package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"serialpha/src/acquisition"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"

	"github.com/gin-gonic/gin"
)

var _ interfaces.IDataExchanger = (*ControlServer)(nil)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// ControlServer
// -----------------------------------------------------------------------------

// ControlServer serves the REST control API and pushes session state to
// websocket clients.
type ControlServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server
	ctrl   *acquisition.Controller

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MLatestData
	register   chan *Client
	unregister chan *Client
	reply      chan clientReply
	done       chan struct{}
	stopOnce   sync.Once

	// Local cache
	latestState *models.MLatestData
	stateMutex  sync.RWMutex
}

// clientReply is a message for a single client, sent through the hub.
type clientReply struct {
	client  *Client
	message *models.MLatestData
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewControlServer(cfg *models.MConfig, logger *logger.Logger) *ControlServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ControlServer{
		Config:     cfg,
		Logger:     logger,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MLatestData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		reply:      make(chan clientReply),
		done:       make(chan struct{}),
		latestState: &models.MLatestData{
			Type: acquisition.TypeInitial,
		},
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	go s.handleWebsockets()
	return s
}

// SetController attaches the acquisition controller served by the API.
// It must be called before Start.
func (s *ControlServer) SetController(ctrl *acquisition.Controller) {
	s.ctrl = ctrl
}

// Handler exposes the gin engine, mostly for tests.
func (s *ControlServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ControlServer) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/metrics", s.getMetrics)

	api.GET("/profiles", s.getProfiles)
	api.POST("/profiles/import", s.importProfiles)
	api.GET("/profiles/export", s.exportProfiles)
	api.PUT("/profiles/selected", s.selectProfile)

	api.GET("/ports", s.getPorts)
	api.POST("/interval/validate", s.validateInterval)
	api.POST("/connect", s.connect)
	api.POST("/disconnect", s.disconnect)
	api.GET("/records/recent", s.getRecentRecords)

	api.POST("/titration", s.addTitrationPoint)
	api.PUT("/field", s.selectField)
	api.DELETE("/data", s.clearData)
	api.GET("/series", s.getSeries)
	api.GET("/series/summary", s.getSummary)
	api.GET("/series/:kind/csv", s.getSeriesCSV)

	api.POST("/export", s.exportNow)
	api.GET("/export/folder", s.getExportFolder)
	api.PUT("/export/folder", s.setExportFolder)
	api.DELETE("/export/folder", s.clearExportFolder)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves HTTP until Stop is called.
func (s *ControlServer) Start() error {
	if s.ctrl == nil {
		return errors.New("control server started without a controller")
	}
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting control server on %s", addr)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and ends the websocket hub.
func (s *ControlServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = s.http.Shutdown(ctx)
		}
	})
	return err
}
