package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"scdash/internal/config"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/internal/infrastructure"
	customMiddleware "scdash/internal/middleware"
	"scdash/internal/services"
	"scdash/internal/storage"
	handlers "scdash/internal/transport/http"
	"scdash/internal/validation"
)

// BuildTime is set at link time with -ldflags "-X scdash/internal/app.BuildTime=...".
var BuildTime = ""

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Store         *storage.Store // nil unless database persistence is enabled
	Pipeline      *Pipeline
	Services      *ServiceContainer
	Router        *chi.Mux
	Server        *http.Server
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Pipeline  *services.PipelineService
	Dashboard *services.DashboardService
	Forecast  *services.ForecastService
	Health    *services.HealthService
}

// NewApplication loads the configuration, initializes logging and builds
// the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig builds the application from an explicit
// configuration and logger.
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	if err := a.initializeServices(); err != nil {
		a.closeResources(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(); err != nil {
		a.closeResources(context.Background())
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	if a.Config.Pipeline.PersistDB {
		store, err := storage.Open(context.Background(), a.Config.Database, a.Paths.DatabaseFile, a.Logger)
		if err != nil {
			return err
		}
		a.Store = store
	}

	pipeline, err := BuildPipeline(a.Config, a.Store, a.OTelProviders, a.Metrics, a.Logger)
	if err != nil {
		return err
	}
	a.Pipeline = pipeline

	pipelineService := services.NewPipelineService(pipeline.Manager, pipeline.Cache, a.Paths, a.Config.Pipeline.PersistDB, a.Logger)
	forecaster := forecast.NewForecaster(a.Config.Forecast, a.Paths.ModelFile, a.Metrics, a.Logger)

	var db services.Pinger
	if a.Store != nil {
		db = a.Store
	}

	a.Services = &ServiceContainer{
		Pipeline: pipelineService,
		Dashboard: services.NewDashboardService(pipelineService, pipeline.Cache, pipeline.LoadOptions,
			pipeline.Cleaner, pipeline.Calculator, a.Logger),
		Forecast: services.NewForecastService(forecaster, pipeline.LoadOptions, a.Logger),
		Health:   services.NewHealthService(config.AppVersion, BuildTime, a.Paths, pipelineService, db, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes.
// Middleware order: RequestID → RealIP → OTel → Logger → Recoverer →
// SecurityHeaders → RateLimit → Timeout → MaxBodySize.
func (a *Application) setupRouter() error {
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	pages, err := handlers.NewPageHandler(a.Services.Dashboard, a.Services.Pipeline, a.Services.Forecast,
		a.Paths.ModelFile, a.Config.Server.MaxUploadBytes, a.Logger, errorHandler)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		if a.Config.Security.SecurityHeaders {
			r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))

		pages.RegisterRoutes(r)
		handlers.NewDataHandler(a.Services.Dashboard, a.Services.Pipeline, a.Services.Forecast, a.Logger, errorHandler).RegisterRoutes(r)
		handlers.NewOperationsHandler(a.Services.Pipeline, customMiddleware.NewValidator(), a.Logger, errorHandler).RegisterRoutes(r)
		handlers.NewHealthHandler(a.Services.Health, a.Logger).RegisterRoutes(r)
	})

	// Outside the group so scrapes are neither rate limited nor logged.
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server in the background. A listen failure calls
// cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("source", a.Services.Pipeline.Source()),
		slog.Bool("persist_db", a.Store != nil))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	a.closeResources(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}
	return a.Stop(context.Background())
}

func (a *Application) closeResources(ctx context.Context) {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing database", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// performStartupHealthCheck warns about unwritable directories and a
// missing source file. None of these stop the server.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	validator := validation.NewFileValidator(a.Logger)
	directories := map[string]string{
		"Data":   a.Paths.DataDir,
		"Logs":   a.Paths.LogsDir,
		"Models": a.Paths.ModelsDir,
	}
	for name, dir := range directories {
		if err := validator.ValidateOutputDirectory(dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		}
	}

	if !config.FileExists(a.Paths.InputFile) {
		warnings = append(warnings, fmt.Sprintf("source file not found: %s (upload one from the dashboard)", a.Paths.InputFile))
	}
	if !config.FileExists(a.Paths.ModelFile) {
		a.Logger.InfoContext(ctx, "No trained demand model yet", slog.String("path", a.Paths.ModelFile))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
