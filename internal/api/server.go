// Package api provides the HTTP REST API and WebSocket server for Station PM.
//
// It exposes the diagnostic import pipeline (parse preview then commit),
// controller and snapshot queries, maintenance visit management, and
// real-time event broadcast to dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldline/stationpm/internal/audit"
	"github.com/fieldline/stationpm/internal/auth"
	"github.com/fieldline/stationpm/internal/infrastructure/config"
	"github.com/fieldline/stationpm/internal/infrastructure/influxdb"
	"github.com/fieldline/stationpm/internal/infrastructure/logging"
	"github.com/fieldline/stationpm/internal/infrastructure/mqtt"
	"github.com/fieldline/stationpm/internal/inventory"
	"github.com/fieldline/stationpm/internal/resource"
	"github.com/fieldline/stationpm/internal/snapshot"
	"github.com/fieldline/stationpm/internal/visit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Security     config.SecurityConfig
	Imports      config.ImportConfig
	Logger       *logging.Logger
	UserRepo     auth.UserRepository
	TokenRepo    auth.TokenRepository
	SnapshotRepo snapshot.Repository
	DeviceRepo   inventory.Repository
	ResourceRepo resource.Repository
	VisitRepo    visit.Repository
	AuditRepo    audit.Repository  // optional: audit trail disabled when nil
	MQTT         *mqtt.Client      // optional: event publishing disabled when nil
	Influx       *influxdb.Client  // optional: metric history disabled when nil
	ExternalHub  *Hub              // If set, the server uses this hub instead of creating its own
	MaxUpload    int64             // upload cap in bytes; defaults to 16 MB when zero
	Version      string
}

// Server is the HTTP API server for Station PM.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub, and
// the in-memory parse preview store for two-phase imports.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	importCfg    config.ImportConfig
	logger       *logging.Logger
	userRepo     auth.UserRepository
	tokenRepo    auth.TokenRepository
	snapshotRepo snapshot.Repository
	deviceRepo   inventory.Repository
	resourceRepo resource.Repository
	visitRepo    visit.Repository
	auditRepo    audit.Repository
	mqtt         *mqtt.Client
	influx       *influxdb.Client
	maxUpload    int64
	version      string
	server       *http.Server
	hub          *Hub
	externalHub  bool               // true if hub was injected externally
	cancel       context.CancelFunc // cancels background goroutines on Close()
	tickets      *ticketStore
	previews     *previewStore
	auditCh      chan *audit.AuditLog
}

// defaultMaxUpload caps uploaded export files when no limit is configured (16 MB).
const defaultMaxUpload = 16 << 20

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.UserRepo == nil || deps.TokenRepo == nil {
		return nil, fmt.Errorf("user and token repositories are required")
	}
	if deps.SnapshotRepo == nil {
		return nil, fmt.Errorf("snapshot repository is required")
	}
	if deps.DeviceRepo == nil || deps.ResourceRepo == nil {
		return nil, fmt.Errorf("device and resource repositories are required")
	}
	if deps.VisitRepo == nil {
		return nil, fmt.Errorf("visit repository is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	// MQTT and InfluxDB are optional — imports still commit without them,
	// events just go straight to WebSocket and history points are skipped.

	maxUpload := deps.MaxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		importCfg:    deps.Imports,
		logger:       deps.Logger,
		userRepo:     deps.UserRepo,
		tokenRepo:    deps.TokenRepo,
		snapshotRepo: deps.SnapshotRepo,
		deviceRepo:   deps.DeviceRepo,
		resourceRepo: deps.ResourceRepo,
		visitRepo:    deps.VisitRepo,
		auditRepo:    deps.AuditRepo,
		mqtt:         deps.MQTT,
		influx:       deps.Influx,
		maxUpload:    maxUpload,
		version:      deps.Version,
		tickets:      newTicketStore(),
		previews:     newPreviewStore(previewTTL(deps.Imports)),
	}

	if deps.AuditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	// Use externally-provided hub if available (needed when another component
	// also requires the hub for WebSocket broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// previewTTL converts the configured preview TTL to a duration,
// falling back to 30 minutes when unset.
func previewTTL(cfg config.ImportConfig) time.Duration {
	if cfg.PreviewTTL <= 0 {
		return 30 * time.Minute //nolint:mnd // default preview lifetime
	}
	return time.Duration(cfg.PreviewTTL) * time.Minute
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to MQTT event
// topics for real-time WebSocket relay, and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Periodic cleanup of expired WebSocket tickets and parse previews
	go s.tickets.cleanLoop(srvCtx)
	go s.previews.cleanLoop(srvCtx)

	// Async audit log writer
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	// Relay published events to WebSocket clients
	if err := s.subscribeEventRelay(); err != nil {
		s.logger.Warn("failed to subscribe to event topics for WebSocket relay", "error", err)
	}

	// Build router
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket/preview cleanup, audit writer)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
