package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/handler"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/service"

	"github.com/FACorreiaa/sukhavati-ingest/pkg/config"
	"github.com/FACorreiaa/sukhavati-ingest/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	IngestRepo repository.IngestRepository

	// Services
	IngestService *service.IngestService

	// Handlers
	UploadHandler *handler.UploadHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.IngestRepo = repository.NewPostgresIngestRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.IngestService = service.NewIngestService(d.IngestRepo, d.Logger, service.Options{
		AllowedSchemas: d.Config.Ingest.AllowedSchemas,
		WindowDays:     d.Config.Ingest.WindowDays,
	})

	d.Logger.Info("services initialized",
		"allowed_schemas", d.Config.Ingest.AllowedSchemas,
		"window_days", d.Config.Ingest.WindowDays,
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.UploadHandler = handler.NewUploadHandler(
		d.IngestService,
		d.Logger,
		d.Config.Server.MaxUploadBytes,
		d.Config.Server.RequestTimeout,
	)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
