package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/repository/postgres"
	redisrepo "github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/repository/redis"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/config"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/logger"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

const (
	shipperGroup       = "record-shippers"
	processingInterval = 1 * time.Second
	purgeInterval      = 1 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting diagnostic record consumer")

	if cfg.RedisURL == "" || cfg.PostgresURL == "" {
		log.Error("consumer requires REDIS_URL and POSTGRES_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "consumer-default"
	}

	m := metrics.NewIntakeMetrics()
	metricsServer := &http.Server{Addr: cfg.AdminServerAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	defer metricsServer.Close()

	buffer := redisrepo.NewRecordRepository(redisClient, log, shipperGroup, cfg.RedisDLQStream, 0, nil, nil)
	sink := postgres.NewRecordRepository(db, log)

	processor := usecase.NewProcessRecordsUseCase(buffer, sink, log, shipperGroup, consumerName, cfg.ConsumerRetryCount, cfg.ConsumerRetryBackoff).
		WithBatchSize(cfg.ConsumerBatchSize).
		WithMetrics(m)

	purger := usecase.NewPurgeRecordsUseCase(sink, log, cfg.DiagnosticRetention)
	go purger.Run(ctx, purgeInterval)

	processor.Run(ctx, processingInterval)

	log.Info("consumer shut down gracefully")
}
