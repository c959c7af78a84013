package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

const (
	recordsTableName = "diagnostic_records"
	tempTableName    = "diagnostic_records_import"
)

var recordColumns = []string{"record_id", "kind", "endpoint", "request_id", "remote_addr", "received_at", "payload", "error", "redacted"}

// RecordRepository implements the sink half of domain.RecordRepository on PostgreSQL.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new PostgreSQL record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger.With("component", "postgres_repository")}
}

// WriteRecordBatch stages the batch with COPY into a temp table and upserts it
// on record_id, so redelivered batches are idempotent.
func (r *RecordRepository) WriteRecordBatch(ctx context.Context, recs []domain.DiagnosticRecord) error {
	if len(recs) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer txn.Rollback() // no-op after Commit

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE `+recordsTableName+` INCLUDING DEFAULTS) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(tempTableName, recordColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, copyValues(rec)...); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy record %s: %w", rec.ID, err)
		}
	}

	// Flush buffered COPY data.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if _, err := txn.ExecContext(ctx, upsertQuery); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("wrote diagnostic records", "count", len(recs))
	return nil
}

const upsertQuery = `
	INSERT INTO ` + recordsTableName + ` (record_id, kind, endpoint, request_id, remote_addr, received_at, payload, error, redacted)
	SELECT DISTINCT ON (record_id) record_id, kind, endpoint, request_id, remote_addr, received_at, payload, error, redacted
	FROM ` + tempTableName + `
	ON CONFLICT (record_id) DO UPDATE SET
		kind = EXCLUDED.kind,
		endpoint = EXCLUDED.endpoint,
		request_id = EXCLUDED.request_id,
		remote_addr = EXCLUDED.remote_addr,
		received_at = EXCLUDED.received_at,
		payload = EXCLUDED.payload,
		error = EXCLUDED.error,
		redacted = EXCLUDED.redacted
`

// PurgeRecordsBefore deletes records received before cutoff.
func (r *RecordRepository) PurgeRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+recordsTableName+` WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	return n, nil
}

// copyValues orders a record's fields to match recordColumns. Empty payloads
// and errors are stored as NULL.
func copyValues(rec domain.DiagnosticRecord) []any {
	var payload, errText any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}
	if rec.Error != "" {
		errText = rec.Error
	}
	return []any{rec.ID, rec.Kind, rec.Endpoint, rec.RequestID, rec.RemoteAddr, rec.ReceivedAt, payload, errText, rec.Redacted}
}

// The following methods are not implemented for the PostgreSQL sink.
var errNotImplemented = errors.New("method not implemented for this repository type")

func (r *RecordRepository) BufferRecord(ctx context.Context, rec domain.DiagnosticRecord) error {
	return errNotImplemented
}

func (r *RecordRepository) ReadRecordBatch(ctx context.Context, group, consumer string, count int) ([]domain.DiagnosticRecord, error) {
	return nil, errNotImplemented
}

func (r *RecordRepository) AcknowledgeRecords(ctx context.Context, group string, messageIDs ...string) error {
	return errNotImplemented
}

func (r *RecordRepository) MoveToDLQ(ctx context.Context, recs []domain.DiagnosticRecord) error {
	return errNotImplemented
}
