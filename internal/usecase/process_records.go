package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

const (
	DefaultBatchSize    = 500
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 1 * time.Second
)

// ProcessRecordsUseCase drains diagnostic records from the stream buffer into
// the long-term sink.
type ProcessRecordsUseCase struct {
	bufferRepo   domain.RecordRepository
	sinkRepo     domain.RecordRepository
	logger       *slog.Logger
	metrics      *metrics.IntakeMetrics
	group        string
	consumer     string
	batchSize    int
	retryCount   int
	retryBackoff time.Duration
}

// NewProcessRecordsUseCase creates a new use case for shipping records.
func NewProcessRecordsUseCase(bufferRepo, sinkRepo domain.RecordRepository, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *ProcessRecordsUseCase {
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}
	return &ProcessRecordsUseCase{
		bufferRepo:   bufferRepo,
		sinkRepo:     sinkRepo,
		logger:       logger.With("component", "record_processor"),
		group:        group,
		consumer:     consumer,
		batchSize:    DefaultBatchSize,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// WithBatchSize overrides the number of records read per batch.
func (uc *ProcessRecordsUseCase) WithBatchSize(n int) *ProcessRecordsUseCase {
	if n > 0 {
		uc.batchSize = n
	}
	return uc
}

// WithMetrics attaches consumer counters.
func (uc *ProcessRecordsUseCase) WithMetrics(m *metrics.IntakeMetrics) *ProcessRecordsUseCase {
	uc.metrics = m
	return uc
}

// ProcessBatch reads a batch and writes it to the sink with retries. If the
// batch keeps failing, records are written one at a time and only those the
// sink rejects are parked in the DLQ. The whole batch is then acknowledged.
// It returns the number of records written to the sink.
func (uc *ProcessRecordsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	recs, err := uc.bufferRepo.ReadRecordBatch(ctx, uc.group, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read record batch from buffer", "error", err)
		return 0, err
	}

	if len(recs) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read batch of records from buffer", "count", len(recs))

	sunk := len(recs)
	sinkErr := uc.writeWithRetry(ctx, recs)
	if sinkErr != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		uc.logger.Warn("batch write failed after retries, writing records individually", "error", sinkErr, "count", len(recs))
		rejected := uc.writeIndividually(ctx, recs)
		if ctx.Err() != nil {
			// Unacked records are redelivered; the upsert absorbs the ones already written.
			return 0, ctx.Err()
		}
		sunk = len(recs) - len(rejected)

		if len(rejected) > 0 {
			uc.logger.Error("moving rejected records to DLQ", "count", len(rejected))
			if err := uc.bufferRepo.MoveToDLQ(ctx, rejected); err != nil {
				// Leave the batch pending so it is redelivered.
				return 0, fmt.Errorf("moving records to DLQ: %w (sink error: %v)", err, sinkErr)
			}
			if uc.metrics != nil {
				uc.metrics.RecordsDeadLetteredTotal.Add(float64(len(rejected)))
			}
		}
	}

	messageIDs := make([]string, len(recs))
	for i, rec := range recs {
		messageIDs[i] = rec.StreamMessageID
	}

	if err := uc.bufferRepo.AcknowledgeRecords(ctx, uc.group, messageIDs...); err != nil {
		// Records will be redelivered; the sink upsert on record_id absorbs duplicates.
		uc.logger.Error("failed to acknowledge records in buffer", "error", err)
		return 0, err
	}

	if sunk == 0 {
		return 0, sinkErr
	}

	if uc.metrics != nil {
		uc.metrics.RecordsSunkTotal.Add(float64(sunk))
	}
	uc.logger.Info("shipped diagnostic record batch", "count", sunk, "dead_lettered", len(recs)-sunk)
	return sunk, nil
}

// writeIndividually writes each record on its own, once, and returns the ones
// the sink rejected.
func (uc *ProcessRecordsUseCase) writeIndividually(ctx context.Context, recs []domain.DiagnosticRecord) []domain.DiagnosticRecord {
	var rejected []domain.DiagnosticRecord
	for i, rec := range recs {
		if ctx.Err() != nil {
			return append(rejected, recs[i:]...)
		}
		if err := uc.sinkRepo.WriteRecordBatch(ctx, []domain.DiagnosticRecord{rec}); err != nil {
			uc.logger.Warn("sink rejected diagnostic record", "record_id", rec.ID, "error", err)
			rejected = append(rejected, rec)
		}
	}
	return rejected
}

func (uc *ProcessRecordsUseCase) writeWithRetry(ctx context.Context, recs []domain.DiagnosticRecord) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.sinkRepo.WriteRecordBatch(ctx, recs)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write batch to sink, retrying", "attempt", i+1, "error", err)
		if i == uc.retryCount-1 {
			break
		}
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// Run calls ProcessBatch on every tick until ctx is cancelled.
func (uc *ProcessRecordsUseCase) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	uc.logger.Info("record processor started", "group", uc.group, "consumer", uc.consumer)
	for {
		select {
		case <-ticker.C:
			// Drain eagerly while full batches keep coming.
			for {
				n, err := uc.ProcessBatch(ctx)
				if err != nil || n < uc.batchSize || ctx.Err() != nil {
					break
				}
			}
		case <-ctx.Done():
			uc.logger.Info("record processor stopped")
			return
		}
	}
}
