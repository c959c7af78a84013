package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/middleware"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

// ErrBodyParse wraps every failure to read or decode a submission body.
var ErrBodyParse = errors.New("body parse failure")

const genericFailureMessage = "There was an error processing your application. Please try again."

// IntakeConfig parameterizes one submission endpoint.
type IntakeConfig struct {
	Name           string
	SuccessMessage string
	FailureMessage string
}

var (
	FreelancerIntake = IntakeConfig{
		Name:           "freelancer",
		SuccessMessage: "Application received successfully. We will contact you when a suitable project becomes available.",
		FailureMessage: genericFailureMessage,
	}
	PartnerIntake = IntakeConfig{
		Name:           "partner",
		SuccessMessage: "Partnership application received successfully. Our team will contact you soon.",
		FailureMessage: genericFailureMessage,
	}
)

// IntakeResponse is the body of every intake response.
type IntakeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IntakeHandler accepts an arbitrary JSON submission, records it and returns
// a fixed acknowledgement. Nothing about the payload is validated or stored.
type IntakeHandler struct {
	cfg         IntakeConfig
	recorder    domain.Recorder
	logger      *slog.Logger
	maxBodySize int64
	metrics     *metrics.IntakeMetrics

	// Pre-encoded so every response with the same outcome is byte-identical.
	successBody []byte
	failureBody []byte
}

// NewIntakeHandler creates an IntakeHandler. m may be nil.
func NewIntakeHandler(cfg IntakeConfig, recorder domain.Recorder, logger *slog.Logger, maxBodySize int64, m *metrics.IntakeMetrics) *IntakeHandler {
	return &IntakeHandler{
		cfg:         cfg,
		recorder:    recorder,
		logger:      logger.With("component", "intake_handler", "endpoint", cfg.Name),
		maxBodySize: maxBodySize,
		metrics:     m,
		successBody: mustEncode(IntakeResponse{Success: true, Message: cfg.SuccessMessage}),
		failureBody: mustEncode(IntakeResponse{Success: false, Message: cfg.FailureMessage}),
	}
}

// ServeHTTP handles one submission. The router only routes POST here.
func (h *IntakeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	rec := domain.DiagnosticRecord{
		Endpoint:   h.cfg.Name,
		RequestID:  middleware.RequestIDFrom(r.Context()),
		RemoteAddr: r.RemoteAddr,
	}

	payload, n, err := readPayload(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.logger.Warn("submission body too large", "limit", maxBytesErr.Limit)
		}
		rec.Kind = domain.KindSubmissionFailed
		rec.Error = err.Error()
		h.recorder.Record(r.Context(), rec)
		h.metrics.ObserveSubmission(h.cfg.Name, true, n)
		h.write(w, http.StatusInternalServerError, h.failureBody)
		return
	}

	rec.Kind = domain.KindSubmissionReceived
	rec.Payload = payload
	h.recorder.Record(r.Context(), rec)
	h.metrics.ObserveSubmission(h.cfg.Name, false, n)
	h.write(w, http.StatusOK, h.successBody)
}

// readPayload reads the whole body and checks it is exactly one JSON value of
// any type. The returned payload is compacted for logging.
func readPayload(body io.Reader) (json.RawMessage, int, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, len(raw), fmt.Errorf("%w: reading body: %w", ErrBodyParse, err)
	}

	var value json.RawMessage
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, len(raw), fmt.Errorf("%w: %w", ErrBodyParse, err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return nil, len(raw), fmt.Errorf("%w: %w", ErrBodyParse, err)
	}
	return compact.Bytes(), len(raw), nil
}

func (h *IntakeHandler) write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write intake response", "error", err)
	}
}

func mustEncode(v IntakeResponse) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encoding intake response: %v", err))
	}
	return b
}
