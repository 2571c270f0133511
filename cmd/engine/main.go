package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/fieldops/fieldservice/config"
	"github.com/fieldops/fieldservice/internal/engine"
	"github.com/fieldops/fieldservice/kafka"
	"github.com/fieldops/fieldservice/pkg/database"
	"github.com/fieldops/fieldservice/pkg/locking"
	"github.com/fieldops/fieldservice/pkg/logger"
	"github.com/fieldops/fieldservice/pkg/tracing"
)

func main() {
	serviceName := getEnv("OTEL_SERVICE_NAME", "fieldservice-engine")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.SetLevel(cfg.Log.Level)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("log_level", cfg.Log.Level).
		Msg("Starting field service engine")

	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx, tp); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	db, err := database.NewGormConnection(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	if err := engine.AutoMigrate(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Logger.Info().Msg("Database initialized successfully")

	var publisher engine.EventPublisher
	if cfg.Kafka.Enabled {
		kp, err := kafka.NewPublisher(cfg.Kafka.Brokers)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka publisher")
		}
		defer kp.Close()
		publisher = kp
	} else {
		logger.Logger.Info().Msg("Kafka disabled, running without event emission")
	}

	locks := locking.NewManager(cfg.Locking.AcquireTimeout())
	eng := engine.New(db, locks, publisher)

	logger.Logger.Info().
		Dur("lock_timeout", cfg.Locking.AcquireTimeout()).
		Msg("Engine initialized")

	go startMetricsServer(eng, cfg.Server.MetricsPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down engine...")
}

// startMetricsServer serves the operational endpoints only: metrics and
// health. The engine exposes no API of its own.
func startMetricsServer(eng *engine.Engine, port int) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(eng.Registry(), promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	})

	logger.Logger.Info().
		Int("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("Metrics server started")

	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), c.Handler(router)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start metrics server")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
