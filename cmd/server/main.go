package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apptenancy "github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/application/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/auth"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/cache"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/config"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/migration"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/handler"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/router"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/migrations"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Export logs over OTLP alongside the local sink
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = logProvider.Bridge(log, level)

	log.Info("Starting business context service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles(profiler)
	}

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		DBSystem:        dbSystem,
		LogFullSQL:      cfg.Telemetry.DBTracingFullSQL,
		SlowQueryThresh: cfg.Telemetry.SlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if err := migrateSchema(db, cfg, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Snapshot store: Redis when enabled, in-memory otherwise
	snapshots, snapshotCloser, err := cache.NewSnapshotStoreFactory(cfg.Redis, cfg.Resolver,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create snapshot store", zap.Error(err))
	}
	defer func() {
		if err := snapshotCloser.Close(); err != nil {
			log.Error("Error closing snapshot store", zap.Error(err))
		}
	}()

	// Repositories
	businessRepo := persistence.NewGormBusinessRepository(db.DB)
	profileRepo := persistence.NewGormUserProfileRepository(db.DB)
	staffRepo := persistence.NewGormStaffRepository(db.DB)
	requestRepo := persistence.NewGormLinkRequestRepository(db.DB)

	// Metrics stay no-op unless the meter exports
	var meter metric.Meter
	contextMetrics := telemetry.NoopContextMetrics()
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter("madas.context")
		if contextMetrics, err = telemetry.NewContextMetrics(meter); err != nil {
			log.Fatal("Failed to create context metrics", zap.Error(err))
		}
	}

	// Application services
	resolver := apptenancy.NewBusinessResolver(businessRepo, profileRepo, staffRepo, log)
	requests := apptenancy.NewLinkRequestService(businessRepo, requestRepo, contextMetrics, log)
	sessions := apptenancy.NewSessionManager(apptenancy.SessionDeps{
		Resolver:   resolver,
		Requests:   requests,
		Businesses: businessRepo,
		Snapshots:  snapshots,
		Metrics:    contextMetrics,
		Logger:     log,
	}, apptenancy.SessionConfig{
		Retry: apptenancy.RetryPolicy{
			MaxRetries: cfg.Resolver.MaxRetries,
			BaseDelay:  cfg.Resolver.BaseDelay,
		},
		CacheFallback: cfg.Resolver.CacheFallback,
	})

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	readyChecks := map[string]handler.Pinger{
		"database": handler.PingerFunc(func(context.Context) error { return db.Ping() }),
	}
	if redisStore, ok := snapshots.(*cache.RedisSnapshotStore); ok {
		readyChecks["redis"] = redisStore
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine := router.NewEngine(router.EngineConfig{
		AppName:        cfg.App.Name,
		Version:        version,
		Logger:         log,
		JWT:            auth.NewJWTService(cfg.JWT),
		Sessions:       sessions,
		CORS:           cors,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		ContextWait:    cfg.HTTP.ContextWait,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Meter: meter,
		Profiling: middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: []string{"/health", "/ready"},
		},
		ReadyChecks: readyChecks,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background resolutions before the stores they write to close
	sessions.Close()

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}
}

// migrateSchema creates SQLite tables from the models and applies the
// embedded migrations to PostgreSQL
func migrateSchema(db *persistence.Database, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migration.Config{FS: migrations.FS}, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool
	return m.Up()
}
