package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/homesec-core/internal/ambient"
	"github.com/nerrad567/homesec-core/internal/audit"
	"github.com/nerrad567/homesec-core/internal/controller"
	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/logging"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StateSource exposes the control loop's last snapshot.
type StateSource interface {
	Snapshot() controller.Snapshot
}

// CommandSender validates and routes a command. *controller.Sender
// satisfies it.
type CommandSender interface {
	Send(topic string, payload []byte) (controller.Delivery, error)
}

// LinkReporter reports the broker link state. *mqtt.Supervisor satisfies it.
type LinkReporter interface {
	State() mqtt.LinkState
}

// AmbientSource returns the latest ambient reading. *ambient.Recorder
// satisfies it.
type AmbientSource interface {
	Latest() (ambient.Reading, bool)
}

// CodeVerifier checks door codes. *otp.Service satisfies it.
type CodeVerifier interface {
	Verify(code int) error
	QRCode(size int) ([]byte, error)
}

// DBStatter reports connection pool stats. *database.DB satisfies it.
type DBStatter interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server. Logger, State
// and Commands are required; everything else is optional and the matching
// endpoints answer 503 without it.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	State    StateSource
	Commands CommandSender
	Link     LinkReporter
	Ambient  AmbientSource
	Audit    audit.Repository
	Codes    CodeVerifier
	DB       DBStatter
	Gatherer prometheus.Gatherer
	Hub      *Hub   // If set, the server uses this hub instead of creating its own
	PanelDir string // Serve the panel from disk instead of the embedded copy
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	state     StateSource
	commands  CommandSender
	link      LinkReporter
	ambient   AmbientSource
	auditRepo audit.Repository
	codes     CodeVerifier
	db        DBStatter
	gatherer  prometheus.Gatherer
	panelDir  string
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state source is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command sender is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		state:     deps.State,
		commands:  deps.Commands,
		link:      deps.Link,
		ambient:   deps.Ambient,
		auditRepo: deps.Audit,
		codes:     deps.Codes,
		db:        deps.DB,
		gatherer:  deps.Gatherer,
		panelDir:  deps.PanelDir,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected) and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr, "cors_origins", originList(s.cfg.CORS.AllowedOrigins))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// HealthCheck verifies the API server is running.
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

func (s *Server) linkState() string {
	if s.link == nil {
		return mqtt.StateDisconnected.String()
	}
	return s.link.State().String()
}
