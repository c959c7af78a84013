package pii

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks configured keys in a diagnostic record's payload before it is logged.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given key names.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact rewrites rec.Payload in place, masking matching keys at any depth of
// nested objects and arrays. Scalar payloads pass through untouched.
func (r *Redactor) Redact(rec *domain.DiagnosticRecord) error {
	if len(r.fieldsToRedact) == 0 || len(rec.Payload) == 0 {
		return nil
	}

	// Numbers stay json.Number so large ids and phone numbers keep every digit.
	dec := json.NewDecoder(bytes.NewReader(rec.Payload))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		r.logger.Warn("failed to unmarshal payload for redaction", "error", err, "record_id", rec.ID)
		return err
	}

	if !r.walk(payload) {
		return nil
	}

	modified, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal payload after redaction", "error", err, "record_id", rec.ID)
		return err
	}
	rec.Payload = modified
	rec.Redacted = true
	return nil
}

func (r *Redactor) walk(v any) bool {
	redacted := false
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if _, ok := r.fieldsToRedact[key]; ok {
				node[key] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(child) {
				redacted = true
			}
		}
	case []any:
		for _, child := range node {
			if r.walk(child) {
				redacted = true
			}
		}
	}
	return redacted
}
