// Package internal contains core application functionality
package internal

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"caudal/internal/audit"
	"caudal/internal/config"
	"caudal/internal/database"
	"caudal/internal/gauth"
	"caudal/internal/historical"
	"caudal/internal/http"
	"caudal/internal/logger"
	"caudal/internal/monthly"
	"caudal/internal/properties"
)

// Application bundles the server with the components it owns.
type Application struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DBManager *database.DBManager
	Fiber     *fiber.App
	Store     *gauth.Store
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg)

	dbManager := database.NewDBManager(cfg, log)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry, err := properties.Load(cfg.PropertiesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}

	store := gauth.NewStore(cfg.GetCredentialTTL())
	recorder := audit.NewRecorder(dbManager.GetConnection(), log)
	jobs := historical.NewService(log, recorder)
	sales := monthly.NewService(log)
	handler := http.NewHandler(log, store, jobs, sales, registry, recorder, dbManager.GetConnection())

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
	})
	MountRoutes(app, handler)

	return &Application{
		Config:    cfg,
		Logger:    log,
		DBManager: dbManager,
		Fiber:     app,
		Store:     store,
	}, nil
}

// StartAsync starts the HTTP server without blocking. The listener is opened
// inside the goroutine, so bind failures (port in use, bad address) also
// surface through the logger rather than the return value; the error return
// exists for callers that start the app alongside other components.
func (a *Application) StartAsync() error {
	go func() {
		addr := ":" + a.Config.GetPort()
		if err := a.Fiber.Listen(addr); err != nil {
			a.Logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

// Shutdown stops the server and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return a.DBManager.Close()
}
