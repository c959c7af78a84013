package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

// DiagnosticStreamKey is the Redis stream diagnostic records are mirrored to.
const DiagnosticStreamKey = "intake_diagnostics"

var errNotImplemented = errors.New("method not implemented for this repository type")

// RecordRepository implements the buffer half of domain.RecordRepository on
// Redis Streams, spilling to a WAL while Redis is unreachable.
type RecordRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	wal          domain.WALRepository
	metrics      *metrics.IntakeMetrics
	dlqStreamKey string
	maxLen       int64
	isAvailable  atomic.Bool
}

// NewRecordRepository creates a Redis-backed RecordRepository. wal and m may be
// nil; consumers do not need a WAL.
func NewRecordRepository(client *redis.Client, logger *slog.Logger, group, dlqStreamKey string, maxLen int64, wal domain.WALRepository, m *metrics.IntakeMetrics) *RecordRepository {
	repo := &RecordRepository{
		client:       client,
		logger:       logger.With("component", "redis_repository"),
		wal:          wal,
		metrics:      m,
		dlqStreamKey: dlqStreamKey,
		maxLen:       maxLen,
	}
	repo.setAvailable(true)

	if group != "" {
		if err := repo.setupConsumerGroup(context.Background(), group); err != nil {
			repo.setAvailable(false)
			repo.logger.Error("failed to set up consumer group, Redis may be unavailable on startup", "error", err)
		}
	}

	return repo
}

// Available reports whether writes currently go to Redis rather than the WAL.
func (r *RecordRepository) Available() bool {
	return r.isAvailable.Load()
}

func (r *RecordRepository) setAvailable(ok bool) {
	r.isAvailable.Store(ok)
	r.reportWAL(!ok)
}

func (r *RecordRepository) markUnavailable() bool {
	if r.isAvailable.CompareAndSwap(true, false) {
		r.reportWAL(true)
		return true
	}
	return false
}

func (r *RecordRepository) reportWAL(active bool) {
	if r.metrics == nil || r.wal == nil {
		return
	}
	if active {
		r.metrics.WALActive.Set(1)
	} else {
		r.metrics.WALActive.Set(0)
	}
}

// StartHealthCheck pings Redis every interval and replays the WAL on recovery.
func (r *RecordRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if r.wal == nil {
		r.logger.Info("WAL is not configured, skipping health check")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("starting Redis health check and WAL replayer")
	if r.isAvailable.Load() {
		// Leftovers from a previous run.
		r.drainWAL(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping Redis health check")
			return
		case <-ticker.C:
			r.checkHealth(ctx)
		}
	}
}

func (r *RecordRepository) checkHealth(ctx context.Context) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		if r.markUnavailable() {
			r.logger.Error("Redis connection lost", "error", err)
		}
		return
	}
	if r.isAvailable.Load() {
		return
	}
	r.logger.Info("Redis connection recovered")
	if err := r.ReplayWAL(ctx); err != nil {
		r.logger.Error("failed to replay WAL after Redis recovery", "error", err)
		return
	}
	r.setAvailable(true)

	// Records that spilled to the WAL while the first pass ran.
	r.drainWAL(ctx)
}

// drainWAL ships leftover WAL records while Redis is available. On failure the
// repository falls back to the WAL so the next health tick retries the replay.
func (r *RecordRepository) drainWAL(ctx context.Context) {
	if err := r.ReplayWAL(ctx); err != nil {
		r.logger.Error("failed to drain WAL", "error", err)
		r.markUnavailable()
	}
}

// ReplayWAL pushes every WAL record to Redis and truncates the WAL on success.
func (r *RecordRepository) ReplayWAL(ctx context.Context) error {
	r.logger.Info("replaying WAL to Redis")
	if err := r.wal.Replay(ctx, func(rec domain.DiagnosticRecord) error {
		return r.bufferToRedis(ctx, rec)
	}); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}

	if err := r.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL after successful replay: %w", err)
	}

	r.logger.Info("WAL replay to Redis completed")
	return nil
}

func (r *RecordRepository) setupConsumerGroup(ctx context.Context, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, DiagnosticStreamKey, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// BufferRecord appends rec to the stream, falling back to the WAL if Redis is unavailable.
func (r *RecordRepository) BufferRecord(ctx context.Context, rec domain.DiagnosticRecord) error {
	if !r.isAvailable.Load() {
		if r.wal == nil {
			return errors.New("redis is unavailable and WAL is not configured")
		}
		r.logger.Warn("Redis is unavailable, writing to WAL", "record_id", rec.ID)
		return r.wal.Write(ctx, rec)
	}

	err := r.bufferToRedis(ctx, rec)
	if err == nil {
		return nil
	}
	if !isNetworkError(err) {
		return err
	}
	if r.markUnavailable() {
		r.logger.Error("Redis connection lost during write", "error", err)
	}
	if r.wal == nil {
		return fmt.Errorf("redis became unavailable and WAL is not configured: %w", err)
	}
	r.logger.Warn("Redis became unavailable, writing to WAL", "record_id", rec.ID)
	return r.wal.Write(ctx, rec)
}

func (r *RecordRepository) bufferToRedis(ctx context.Context, rec domain.DiagnosticRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: DiagnosticStreamKey,
		Values: map[string]interface{}{"payload": payload},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadRecordBatch reads a batch of records for a consumer group member.
func (r *RecordRepository) ReadRecordBatch(ctx context.Context, group, consumer string, count int) ([]domain.DiagnosticRecord, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{DiagnosticStreamKey, ">"},
		Count:    int64(count),
		Block:    2 * time.Second,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 {
		return nil, nil
	}

	recs, undecodable := decodeMessages(streams[0].Messages, r.logger)
	if len(undecodable) > 0 {
		if err := r.parkUndecodable(ctx, group, undecodable); err != nil {
			// They stay pending and come back through the admin claim route.
			r.logger.Error("failed to park undecodable stream messages", "count", len(undecodable), "error", err)
		}
	}
	return recs, nil
}

// decodeMessages splits messages into records and the messages that do not
// hold a diagnostic record.
func decodeMessages(messages []redis.XMessage, logger *slog.Logger) ([]domain.DiagnosticRecord, []redis.XMessage) {
	recs := make([]domain.DiagnosticRecord, 0, len(messages))
	var undecodable []redis.XMessage
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			logger.Warn("invalid message format in stream", "message_id", msg.ID)
			undecodable = append(undecodable, msg)
			continue
		}

		var rec domain.DiagnosticRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			logger.Warn("failed to unmarshal diagnostic record from stream", "message_id", msg.ID, "error", err)
			undecodable = append(undecodable, msg)
			continue
		}
		rec.StreamMessageID = msg.ID
		recs = append(recs, rec)
	}
	return recs, undecodable
}

// parkUndecodable copies raw messages to the DLQ and acknowledges them in one
// MULTI, so a message is never acked without its copy.
func (r *RecordRepository) parkUndecodable(ctx context.Context, group string, messages []redis.XMessage) error {
	ids := make([]string, 0, len(messages))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			values := make(map[string]interface{}, len(msg.Values)+3)
			for k, v := range msg.Values {
				values[k] = v
			}
			values["original_stream"] = DiagnosticStreamKey
			values["original_msg_id"] = msg.ID
			values["failure_reason"] = "undecodable"
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: r.dlqStreamKey, Values: values})
			ids = append(ids, msg.ID)
		}
		pipe.XAck(ctx, DiagnosticStreamKey, group, ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to park undecodable messages: %w", err)
	}
	r.logger.Warn("moved undecodable stream messages to DLQ", "count", len(messages))
	return nil
}

// AcknowledgeRecords acknowledges processed messages.
func (r *RecordRepository) AcknowledgeRecords(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, DiagnosticStreamKey, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ copies records to the dead-letter stream.
func (r *RecordRepository) MoveToDLQ(ctx context.Context, recs []domain.DiagnosticRecord) error {
	if len(recs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			r.logger.Error("failed to marshal record for DLQ", "record_id", rec.ID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.dlqStreamKey,
			Values: map[string]interface{}{
				"payload":         payload,
				"original_stream": DiagnosticStreamKey,
				"original_msg_id": rec.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	r.logger.Warn("moved records to DLQ", "count", len(recs))
	return nil
}

// WriteRecordBatch is not implemented for the buffer.
func (r *RecordRepository) WriteRecordBatch(ctx context.Context, recs []domain.DiagnosticRecord) error {
	return errNotImplemented
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
