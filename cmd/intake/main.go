package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/handler"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/pii"
	redisrepo "github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/repository/redis"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/repository/wal"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/config"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/logger"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

const shipperGroup = "record-shippers"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("intake service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewIntakeMetrics()
	broker := handler.NewSSEBroker(ctx, log)

	// --- Optional diagnostic stream ---
	var (
		buffer       domain.RecordRepository
		adminUseCase *usecase.AdminStreamUseCase
	)
	if cfg.StreamEnabled() {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("could not connect to redis, diagnostic records will spill to the WAL", "error", err)
		}

		walRepo, err := wal.NewWALRepository(cfg.WALPath, cfg.WALSegmentSize, cfg.WALMaxDiskSize, log)
		if err != nil {
			return err
		}
		defer walRepo.Close()

		recordRepo := redisrepo.NewRecordRepository(redisClient, log, shipperGroup, cfg.RedisDLQStream, cfg.DiagnosticStreamMaxLen, walRepo, m)
		go recordRepo.StartHealthCheck(ctx, 5*time.Second)
		buffer = recordRepo

		adminUseCase = usecase.NewAdminStreamUseCase(redisrepo.NewAdminRepository(redisClient, log))
		log.Info("diagnostic stream enabled", "stream", redisrepo.DiagnosticStreamKey)
	} else {
		log.Info("REDIS_URL not set, diagnostic records go to the process log only")
	}

	redactor := pii.NewRedactor(cfg.RedactFieldList(), log)
	recorder := usecase.NewRecordDiagnosticsUseCase(log, redactor, buffer, broker, m)

	// --- Admin and metrics server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(adminUseCase, broker, log, redisrepo.DiagnosticStreamKey, cfg.RedisDLQStream),
	}

	// --- Intake server ---
	intakeServer := &http.Server{
		Addr:         cfg.IntakeServerAddr,
		Handler:      api.NewRouter(cfg, log, recorder, m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serve := func(name string, srv *http.Server) {
		log.Info("starting server", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "server", name, "error", err)
			stop() // Trigger shutdown on server error
		}
	}
	go serve("admin", adminServer)
	go serve("intake", intakeServer)

	<-ctx.Done()
	log.Info("shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The admin server holds long-lived SSE connections; close it hard.
	if err := adminServer.Close(); err != nil {
		log.Error("admin server close failed", "error", err)
	}
	if err := intakeServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("servers shut down gracefully")
	return nil
}
