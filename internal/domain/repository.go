package domain

import (
	"context"
	"time"
)

// RecordRepository defines buffering and sinking of diagnostic records.
// The Redis implementation covers the buffer half, PostgreSQL the sink half.
type RecordRepository interface {
	// BufferRecord appends a single record to the durable buffer.
	BufferRecord(ctx context.Context, rec DiagnosticRecord) error

	// ReadRecordBatch reads a batch of records for a consumer in a group.
	ReadRecordBatch(ctx context.Context, group, consumer string, count int) ([]DiagnosticRecord, error)

	// WriteRecordBatch writes a batch of records to the final sink.
	WriteRecordBatch(ctx context.Context, recs []DiagnosticRecord) error

	// AcknowledgeRecords marks records as processed in the buffer.
	AcknowledgeRecords(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ parks records that could not be sunk.
	MoveToDLQ(ctx context.Context, recs []DiagnosticRecord) error
}

// RecordPurger deletes sunk records received before cutoff and reports how many went.
type RecordPurger interface {
	PurgeRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WALRepository is the local write-ahead log used while the buffer is unreachable.
type WALRepository interface {
	Write(ctx context.Context, rec DiagnosticRecord) error

	// Replay feeds every logged record to handler, oldest first.
	Replay(ctx context.Context, handler func(rec DiagnosticRecord) error) error

	// Truncate drops what the last successful Replay delivered. Records
	// written during or after that replay are kept.
	Truncate(ctx context.Context) error
}

// StreamAdminRepository exposes operational views over the diagnostic stream.
type StreamAdminRepository interface {
	GetStreamInfo(ctx context.Context, stream string) (*StreamInfo, error)
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, stream, group string) ([]ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]PendingMessageDetail, error)
	ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]DiagnosticRecord, error)
	AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
}
