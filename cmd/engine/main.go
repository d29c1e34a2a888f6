package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/aggregator"
	"github.com/yashrk2006/smart-parking-system/internal/detector"
	"github.com/yashrk2006/smart-parking-system/internal/dispatch"
	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/engine"
	"github.com/yashrk2006/smart-parking-system/internal/handler"
	"github.com/yashrk2006/smart-parking-system/internal/ingest"
	"github.com/yashrk2006/smart-parking-system/internal/metrics"
	"github.com/yashrk2006/smart-parking-system/internal/realtime"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/internal/repository"
	"github.com/yashrk2006/smart-parking-system/pkg/config"
	"github.com/yashrk2006/smart-parking-system/pkg/database"
	"github.com/yashrk2006/smart-parking-system/pkg/kafka"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
	"github.com/yashrk2006/smart-parking-system/pkg/middleware"
	pkgredis "github.com/yashrk2006/smart-parking-system/pkg/redis"
	"github.com/yashrk2006/smart-parking-system/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       logLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting parking stream engine...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version))

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	// Storage. The engine runs fully in memory when the database is
	// disabled; zones then come from the built-in seed set.
	var (
		zoneStore      repository.ZoneStore
		violationStore repository.ViolationStore
		healthChecks   []handler.HealthChecker
	)

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(ctx, &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			ConnectTimeout:  10 * time.Second,
			MaxRetries:      3,
			RetryInterval:   2 * time.Second,
		})
		if err != nil {
			appLog.Fatal("Database connection failed", zap.Error(err))
		}
		defer db.Close()
		appLog.Info("Database connected", zap.String("host", cfg.Database.Host))

		zoneStore = repository.NewPostgresZoneStore(db.Pool())
		violationStore = repository.NewPostgresViolationStore(db.Pool())
		healthChecks = append(healthChecks, handler.HealthChecker{Name: "database", Check: db.HealthCheck})
	} else {
		zoneStore = repository.NewMemoryZoneStore(seedZones())
		violationStore = repository.NewMemoryViolationStore()
	}

	var mirror *repository.OccupancyMirror
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			appLog.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()
		appLog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))

		mirror = repository.NewOccupancyMirror(redisClient)
		healthChecks = append(healthChecks, handler.HealthChecker{Name: "redis", Check: redisClient.HealthCheck})
	}

	zones, err := zoneStore.LoadZones(ctx)
	if err != nil {
		appLog.Fatal("Failed to load zones", zap.Error(err))
	}
	appLog.Info("Zones loaded", zap.Int("count", len(zones)))

	// Core pipeline.
	reg := registry.New(zones)
	dispatcher := dispatch.New(cfg.Engine.SubscriberQueueSize)
	det := detector.New(reg, dispatcher, violationStore)
	agg := aggregator.New(reg, dispatcher)

	var factBridge *kafka.Producer
	if cfg.Kafka.Enabled && cfg.Kafka.FactBridge {
		factBridge, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("Kafka fact bridge unavailable", zap.Error(err))
			factBridge = nil
		} else {
			defer factBridge.Close()
		}
	}

	eng := engine.New(reg, agg, det, dispatcher, engine.Options{
		ZoneStore:        zoneStore,
		Mirror:           mirror,
		FactBridge:       factBridge,
		FactTopic:        cfg.Kafka.FactTopic,
		SnapshotInterval: cfg.Engine.SnapshotInterval,
	})
	eng.Start(ctx)
	defer eng.Stop()

	// Ingest sources.
	var sources []ingest.Source
	if cfg.Kafka.Enabled {
		kafkaSource, err := ingest.NewKafkaSource(ctx, cfg.Kafka, eng)
		if err != nil {
			appLog.Fatal("Failed to create kafka ingest source", zap.Error(err))
		}
		sources = append(sources, kafkaSource)
	}
	if cfg.Engine.SimulatorEnabled {
		sources = append(sources, ingest.NewSimulator(reg, eng, cfg.Engine.SimulatorInterval, cfg.Engine.SimulatorSeed))
	}
	for _, src := range sources {
		if err := src.Start(ctx); err != nil {
			appLog.Fatal("Failed to start ingest source", zap.Error(err))
		}
	}
	defer func() {
		for _, src := range sources {
			src.Stop()
		}
	}()

	// HTTP surface.
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(appLog))
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}

	handler.NewHealthHandler(cfg.App.Version, healthChecks...).RegisterRoutes(router)

	api := router.Group("/api")
	handler.NewZoneHandler(reg).RegisterRoutes(api)
	handler.NewViolationHandler(eng).RegisterRoutes(api)
	handler.NewIngestHandler(eng).RegisterRoutes(api)

	hub := realtime.NewHub(dispatcher)
	router.GET("/ws", hub.Serve)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// seedZones is the built-in zone set used when the database is disabled.
func seedZones() []domain.Zone {
	return []domain.Zone{
		{
			ID: "zone-a", Name: "Downtown Plaza", LocationName: "5th & Main",
			MaxCapacity: 100, ReservedSlots: 10, GraceThreshold: 5, FinePerExcess: 50,
			Status: domain.ZoneStatusActive, CurrentCount: 42, ReservedCount: 6,
		},
		{
			ID: "zone-b", Name: "Riverside Lot", LocationName: "Harbor Dr",
			MaxCapacity: 60, ReservedSlots: 5, GraceThreshold: 3, FinePerExcess: 30,
			Status: domain.ZoneStatusActive, CurrentCount: 18, ReservedCount: 2,
		},
		{
			ID: "zone-c", Name: "Station Garage", LocationName: "Central Station",
			MaxCapacity: 250, ReservedSlots: 25, GraceThreshold: 10, FinePerExcess: 75,
			Status: domain.ZoneStatusActive, CurrentCount: 190, ReservedCount: 20,
		},
		{
			ID: "zone-d", Name: "Market Street", LocationName: "Market & 3rd",
			MaxCapacity: 40, ReservedSlots: 0, GraceThreshold: 2, FinePerExcess: 40,
			Status: domain.ZoneStatusMaintenance, CurrentCount: 0,
		},
	}
}
