// Veridocs Core - Legal Document Management Backend
//
// This is the main entry point for the Veridocs Core service. Veridocs is a
// multi-tenant backend for legal practices:
//   - Company-scoped authentication and authorisation
//   - Per-project access grants with ordered permission levels
//   - Versioned document chains charged against storage quotas
//   - An append-only audit trail per tenant
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/veridocs/veridocs-core/migrations"

	"github.com/veridocs/veridocs-core/internal/api"
	"github.com/veridocs/veridocs-core/internal/audit"
	"github.com/veridocs/veridocs-core/internal/auth"
	"github.com/veridocs/veridocs-core/internal/document"
	"github.com/veridocs/veridocs-core/internal/infrastructure/config"
	"github.com/veridocs/veridocs-core/internal/infrastructure/database"
	"github.com/veridocs/veridocs-core/internal/infrastructure/logging"
	"github.com/veridocs/veridocs-core/internal/project"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Veridocs Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Wire repositories and the auth engine
	companies := auth.NewCompanyRepository(db.DB)
	users := auth.NewUserRepository(db.DB)
	tokens := auth.NewTokenRepository(db.DB)
	engine := auth.NewEngine(db.DB, companies, users, tokens, auth.EngineConfig{
		JWTSecret:       cfg.Security.JWT.Secret,
		AccessTokenTTL:  cfg.Security.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.Security.JWT.RefreshTokenTTL,
	}, log)

	projects := project.NewRepository(db.DB)
	grants := project.NewPermissionRepository(db.DB)
	resolver := project.NewResolver(projects, grants)
	documents := document.NewRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Sweep rows that expired while the service was down. Failures are not
	// fatal; expired tokens and grants are also rejected at read time.
	if n, sweepErr := tokens.DeleteExpired(ctx); sweepErr != nil {
		log.Warn("sweeping expired refresh tokens failed", "error", sweepErr)
	} else if n > 0 {
		log.Info("swept expired refresh tokens", "count", n)
	}
	if n, sweepErr := grants.DeleteExpired(ctx); sweepErr != nil {
		log.Warn("sweeping expired permission grants failed", "error", sweepErr)
	} else if n > 0 {
		log.Info("swept expired permission grants", "count", n)
	}

	// Seed a demo tenant on the first boot of a development instance
	if cfg.Service.IsDevelopment() {
		if _, seedErr := auth.SeedDemoCompany(ctx, engine, companies, log.Logger); seedErr != nil {
			return fmt.Errorf("seeding demo company: %w", seedErr)
		}
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		DB:        db,
		Engine:    engine,
		Users:     users,
		Companies: companies,
		Projects:  projects,
		Grants:    grants,
		Resolver:  resolver,
		Documents: documents,
		AuditRepo: auditRepo,
		DevMode:   cfg.Service.IsDevelopment(),
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server first, then
	// the database.

	log.Info("Veridocs Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VERIDOCS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VERIDOCS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure components are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
