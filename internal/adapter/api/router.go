package api

import (
	"log/slog"
	"net/http"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/handler"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/middleware"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/config"
)

// Intake endpoint paths.
const (
	FreelancerPath = "/api/submit-freelancer"
	PartnerPath    = "/api/submit-partner"
)

// NewRouter creates the public HTTP router of the intake service, with request
// ids and access logging applied.
func NewRouter(cfg *config.Config, logger *slog.Logger, recorder domain.Recorder, m *metrics.IntakeMetrics) http.Handler {
	mux := http.NewServeMux()

	// Only POST is routed to the intake handlers; ServeMux answers 405 otherwise.
	mux.Handle("POST "+FreelancerPath, handler.NewIntakeHandler(handler.FreelancerIntake, recorder, logger, cfg.MaxBodySize, m))
	mux.Handle("POST "+PartnerPath, handler.NewIntakeHandler(handler.PartnerIntake, recorder, logger, cfg.MaxBodySize, m))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.RequestID(middleware.Logging(logger)(mux))
}
