package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/pii"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

const defaultMirrorTimeout = 2 * time.Second

// SubmissionReporter receives a notification for every recorded submission.
type SubmissionReporter interface {
	ReportSubmission(endpoint string, failed bool)
}

// RecordDiagnosticsUseCase is the production domain.Recorder. It enriches a
// record, redacts its payload, writes it to the process log and, when a buffer
// is configured, mirrors it to the diagnostic stream.
type RecordDiagnosticsUseCase struct {
	logger        *slog.Logger
	redactor      *pii.Redactor
	buffer        domain.RecordRepository
	reporter      SubmissionReporter
	metrics       *metrics.IntakeMetrics
	mirrorTimeout time.Duration
	now           func() time.Time
}

// NewRecordDiagnosticsUseCase creates the recorder. buffer, reporter and m may be nil.
func NewRecordDiagnosticsUseCase(logger *slog.Logger, redactor *pii.Redactor, buffer domain.RecordRepository, reporter SubmissionReporter, m *metrics.IntakeMetrics) *RecordDiagnosticsUseCase {
	return &RecordDiagnosticsUseCase{
		logger:        logger.With("component", "diagnostics"),
		redactor:      redactor,
		buffer:        buffer,
		reporter:      reporter,
		metrics:       m,
		mirrorTimeout: defaultMirrorTimeout,
		now:           time.Now,
	}
}

// Record implements domain.Recorder. It never fails from the caller's point of view.
func (uc *RecordDiagnosticsUseCase) Record(ctx context.Context, rec domain.DiagnosticRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = uc.now().UTC()
	}

	if uc.redactor != nil {
		if err := uc.redactor.Redact(&rec); err != nil {
			// Parse failures carry no payload, so this only trips on unexpected input.
			uc.logger.Warn("payload redaction failed, logging original", "error", err, "record_id", rec.ID)
		}
	}

	uc.log(ctx, rec)

	if uc.reporter != nil {
		uc.reporter.ReportSubmission(rec.Endpoint, rec.Failed())
	}

	if uc.buffer != nil {
		uc.mirror(ctx, rec)
	}
}

func (uc *RecordDiagnosticsUseCase) log(ctx context.Context, rec domain.DiagnosticRecord) {
	attrs := []any{
		slog.String("record_id", rec.ID),
		slog.String("kind", rec.Kind),
		slog.String("endpoint", rec.Endpoint),
		slog.String("request_id", rec.RequestID),
		slog.String("remote_addr", rec.RemoteAddr),
	}
	if rec.Failed() {
		attrs = append(attrs, slog.String("error", rec.Error))
		uc.logger.ErrorContext(ctx, "submission failed", attrs...)
		return
	}
	attrs = append(attrs, slog.Any("payload", rec.Payload), slog.Bool("redacted", rec.Redacted))
	uc.logger.InfoContext(ctx, "submission received", attrs...)
}

// mirror detaches from the request context so a client hanging up does not
// look like a buffer outage.
func (uc *RecordDiagnosticsUseCase) mirror(ctx context.Context, rec domain.DiagnosticRecord) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.mirrorTimeout)
	defer cancel()

	if err := uc.buffer.BufferRecord(mctx, rec); err != nil {
		uc.logger.Error("failed to mirror diagnostic record", "error", err, "record_id", rec.ID)
		if uc.metrics != nil {
			uc.metrics.StreamMirrorFailures.Inc()
		}
	}
}
