package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/handler"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

// NewAdminRouter creates the operator router: metrics, health, the live rate
// stream and, when adminUseCase is non-nil, stream administration for streams.
func NewAdminRouter(adminUseCase *usecase.AdminStreamUseCase, broker *handler.SSEBroker, logger *slog.Logger, streams ...string) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(adminUseCase, logger, streams...)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	if broker != nil {
		mux.Handle("GET /events", broker)
	}
	if adminUseCase != nil {
		adminHandler.Register(mux)
	}

	return mux
}
