package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

// AdminHandler exposes operator actions on the diagnostic streams.
type AdminHandler struct {
	uc      *usecase.AdminStreamUseCase
	logger  *slog.Logger
	streams map[string]struct{}
}

// NewAdminHandler creates an AdminHandler limited to the named streams.
func NewAdminHandler(uc *usecase.AdminStreamUseCase, logger *slog.Logger, streams ...string) *AdminHandler {
	allowed := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		allowed[s] = struct{}{}
	}
	return &AdminHandler{uc: uc, logger: logger.With("component", "admin_handler"), streams: allowed}
}

// Register mounts the stream administration routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/streams/{streamName}", h.GetStreamInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups", h.GetGroupInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/consumers", h.GetConsumerInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending", h.GetPendingSummary)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending/messages", h.GetPendingMessages)
	mux.HandleFunc("POST /admin/streams/{streamName}/groups/{groupName}/claim", h.ClaimMessages)
	mux.HandleFunc("POST /admin/streams/{streamName}/groups/{groupName}/ack", h.AcknowledgeMessages)
	mux.HandleFunc("POST /admin/streams/{streamName}/trim", h.TrimStream)
}

// HealthCheck reports liveness of the admin server.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stream resolves {streamName}, answering 404 for streams this service does not own.
func (h *AdminHandler) stream(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("streamName")
	if _, ok := h.streams[name]; !ok {
		h.respondWithError(w, http.StatusNotFound, "unknown stream")
		return "", false
	}
	return name, true
}

// GetStreamInfo handles GET /admin/streams/{streamName}
func (h *AdminHandler) GetStreamInfo(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}
	info, err := h.uc.GetStreamInfo(r.Context(), stream)
	h.respond(w, "get stream info", info, err)
}

// GetGroupInfo handles GET /admin/streams/{streamName}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}
	groups, err := h.uc.GetGroupInfo(r.Context(), stream)
	h.respond(w, "get group info", groups, err)
}

// GetConsumerInfo handles GET /admin/streams/{streamName}/groups/{groupName}/consumers
func (h *AdminHandler) GetConsumerInfo(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}
	consumers, err := h.uc.GetConsumerInfo(r.Context(), stream, r.PathValue("groupName"))
	h.respond(w, "get consumer info", consumers, err)
}

// GetPendingSummary handles GET /admin/streams/{streamName}/groups/{groupName}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}
	summary, err := h.uc.GetPendingSummary(r.Context(), stream, r.PathValue("groupName"))
	h.respond(w, "get pending summary", summary, err)
}

// GetPendingMessages handles
// GET /admin/streams/{streamName}/groups/{groupName}/pending/messages?consumer=&start=&count=
func (h *AdminHandler) GetPendingMessages(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var count int64
	if s := q.Get("count"); s != "" {
		var err error
		count, err = strconv.ParseInt(s, 10, 64)
		if err != nil || count < 0 {
			h.respondWithError(w, http.StatusBadRequest, "invalid count parameter")
			return
		}
	}

	messages, err := h.uc.GetPendingMessages(r.Context(), stream, r.PathValue("groupName"), q.Get("consumer"), q.Get("start"), count)
	h.respond(w, "get pending messages", messages, err)
}

// ClaimMessages handles POST /admin/streams/{streamName}/groups/{groupName}/claim
func (h *AdminHandler) ClaimMessages(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}

	var payload struct {
		Consumer    string   `json:"consumer"`
		MinIdleTime string   `json:"min_idle_time"`
		MessageIDs  []string `json:"message_ids"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.Consumer == "" {
		h.respondWithError(w, http.StatusBadRequest, "consumer is required")
		return
	}
	minIdle, err := time.ParseDuration(payload.MinIdleTime)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid min_idle_time format")
		return
	}

	claimed, err := h.uc.ClaimMessages(r.Context(), stream, r.PathValue("groupName"), payload.Consumer, minIdle, payload.MessageIDs)
	h.respond(w, "claim messages", claimed, err)
}

// AcknowledgeMessages handles POST /admin/streams/{streamName}/groups/{groupName}/ack
func (h *AdminHandler) AcknowledgeMessages(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}

	var payload struct {
		MessageIDs []string `json:"message_ids"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	count, err := h.uc.AcknowledgeMessages(r.Context(), stream, r.PathValue("groupName"), payload.MessageIDs...)
	h.respond(w, "acknowledge messages", map[string]int64{"acknowledged": count}, err)
}

// TrimStream handles POST /admin/streams/{streamName}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.stream(w, r)
	if !ok {
		return
	}

	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.MaxLen <= 0 {
		h.respondWithError(w, http.StatusBadRequest, "maxlen must be a positive integer")
		return
	}

	trimmed, err := h.uc.TrimStream(r.Context(), stream, payload.MaxLen)
	h.respond(w, "trim stream", map[string]int64{"trimmed": trimmed}, err)
}

func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *AdminHandler) respond(w http.ResponseWriter, op string, payload any, err error) {
	switch {
	case errors.Is(err, usecase.ErrNoMessageIDs):
		h.respondWithError(w, http.StatusBadRequest, "message_ids cannot be empty")
	case err != nil:
		h.logger.Error("admin operation failed", "op", op, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.respondWithJSON(w, http.StatusOK, payload)
	}
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
