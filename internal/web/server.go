package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/cache"
	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
	"github.com/auditkit/expense-sentinel/internal/store"
	"github.com/auditkit/expense-sentinel/internal/websocket"
)

// Server exposes the expense table and the audit detectors over HTTP.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *audit.Engine
	store   *store.Store
	cache   *cache.ResultCache // nil when caching is disabled
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	started time.Time
}

// New creates a new audit server instance. cache may be nil.
func New(cfg *config.Config, log *logger.Logger, engine *audit.Engine, st *store.Store, rc *cache.ResultCache) *Server {
	hubConfig := &websocket.HubConfig{
		BroadcastAudits:      cfg.WebSocket.Events.BroadcastAudits,
		BroadcastRecords:     cfg.WebSocket.Events.BroadcastRecords,
		BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
	}
	wsHub := websocket.NewHub(hubConfig, log.WithComponent("websocket").Logger)

	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("web"),
		engine:  engine,
		store:   st,
		cache:   rc,
		router:  mux.NewRouter(),
		wsHub:   wsHub,
		started: time.Now(),
	}

	// Mutations anywhere (API, CLI on shared file, external edits picked
	// up by the watcher) surface on the dashboard through this hook.
	st.OnChange(func(action, id string) {
		wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeRecordChange,
			Timestamp: time.Now(),
			Data: websocket.RecordChangeEvent{
				Action:       action,
				ExpenseID:    id,
				TotalRecords: st.Len(),
			},
		})
	})

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health and info endpoints
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard
	s.router.HandleFunc("/", ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", ServeDashboard).Methods("GET")

	// WebSocket endpoint for dashboard
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// API endpoints
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/records", s.handleListRecords).Methods("GET")
	api.HandleFunc("/records", s.handleAddRecord).Methods("POST")
	api.HandleFunc("/records/{id}", s.handleGetRecord).Methods("GET")
	api.HandleFunc("/records/{id}", s.handleUpdateRecord).Methods("PUT")
	api.HandleFunc("/records/{id}", s.handleDeleteRecord).Methods("DELETE")

	api.HandleFunc("/audit/duplicates", s.handleDuplicates).Methods("GET")
	api.HandleFunc("/audit/weekends", s.handleWeekends).Methods("GET")
	api.HandleFunc("/audit/threshold", s.handleThreshold).Methods("GET")
	api.HandleFunc("/audit/keywords", s.handleKeywords).Methods("GET")
	api.HandleFunc("/audit/discrepancies", s.handleDiscrepancies).Methods("GET")
	api.HandleFunc("/audit/benford", s.handleBenford).Methods("GET")

	api.HandleFunc("/export", s.handleExport).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting expense audit server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("records", s.store.Len()),
		zap.Strings("detectors", s.engine.EnabledDetectors()),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping expense audit server")
	return s.server.Shutdown(ctx)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}
