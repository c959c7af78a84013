package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Kinds of diagnostic records emitted by the intake handlers.
const (
	KindSubmissionReceived = "submission_received"
	KindSubmissionFailed   = "submission_failed"
)

// DiagnosticRecord is a log entry produced while handling one intake request.
// It exists for operator visibility only; the submission itself is never stored.
type DiagnosticRecord struct {
	ID              string          `json:"record_id"`
	Kind            string          `json:"kind"`
	Endpoint        string          `json:"endpoint"`
	RequestID       string          `json:"request_id,omitempty"`
	RemoteAddr      string          `json:"remote_addr,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Error           string          `json:"error,omitempty"`
	Redacted        bool            `json:"redacted,omitempty"`
	StreamMessageID string          `json:"-"`
}

// Failed reports whether the record describes a rejected request.
func (r DiagnosticRecord) Failed() bool {
	return r.Kind == KindSubmissionFailed
}

// Recorder is the diagnostic logging capability injected into intake handlers.
type Recorder interface {
	Record(ctx context.Context, rec DiagnosticRecord)
}

// RecorderFunc adapts a plain function to the Recorder interface.
type RecorderFunc func(ctx context.Context, rec DiagnosticRecord)

func (f RecorderFunc) Record(ctx context.Context, rec DiagnosticRecord) {
	f(ctx, rec)
}
