package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/veridocs/veridocs-core/internal/audit"
	"github.com/veridocs/veridocs-core/internal/auth"
	"github.com/veridocs/veridocs-core/internal/document"
	"github.com/veridocs/veridocs-core/internal/infrastructure/config"
	"github.com/veridocs/veridocs-core/internal/infrastructure/database"
	"github.com/veridocs/veridocs-core/internal/infrastructure/logging"
	"github.com/veridocs/veridocs-core/internal/project"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	DB        *database.DB
	Engine    *auth.Engine
	Users     auth.UserRepository
	Companies auth.CompanyRepository
	Projects  project.Repository
	Grants    project.PermissionRepository
	Resolver  *project.Resolver
	Documents document.Repository
	AuditRepo audit.Repository
	DevMode   bool // enables the destructive dev reset endpoint
	Version   string
}

// Server is the HTTP API server for Veridocs.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	db        *database.DB
	engine    *auth.Engine
	users     auth.UserRepository
	companies auth.CompanyRepository
	projects  project.Repository
	grants    project.PermissionRepository
	resolver  *project.Resolver
	documents document.Repository
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	devMode   bool
	version   string
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("auth engine is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		db:        deps.DB,
		engine:    deps.Engine,
		users:     deps.Users,
		companies: deps.Companies,
		projects:  deps.Projects,
		grants:    deps.Grants,
		resolver:  deps.Resolver,
		documents: deps.Documents,
		auditRepo: deps.AuditRepo,
		auditCh:   make(chan *audit.AuditLog, auditChanSize),
		devMode:   deps.DevMode,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the audit log writer, and launches the
// HTTP listener in a background goroutine. The server is stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Serial audit writer; kinder to SQLite than per-request goroutines
	go s.drainAuditLog(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
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
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections. The audit writer drains its
// queue before exiting.
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
