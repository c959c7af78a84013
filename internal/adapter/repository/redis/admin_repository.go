package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

// AdminRepository implements domain.StreamAdminRepository over the diagnostic
// and dead-letter streams.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
}

func NewAdminRepository(client *redis.Client, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger.With("component", "redis_admin"),
	}
}

// GetStreamInfo returns the length and bounds of stream. A stream that was
// never written to reports zero length instead of an error.
func (r *AdminRepository) GetStreamInfo(ctx context.Context, stream string) (*domain.StreamInfo, error) {
	info, err := r.client.XInfoStream(ctx, stream).Result()
	if err != nil {
		if isNoSuchKey(err) {
			return &domain.StreamInfo{Name: stream}, nil
		}
		return nil, fmt.Errorf("xinfo stream %s: %w", stream, err)
	}

	return &domain.StreamInfo{
		Name:          stream,
		Length:        info.Length,
		Groups:        info.Groups,
		EntriesAdded:  info.EntriesAdded,
		FirstRecordID: info.FirstEntry.ID,
		LastRecordID:  info.LastEntry.ID,
	}, nil
}

func (r *AdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	groups, err := r.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("xinfo groups %s: %w", stream, err)
	}

	out := make([]domain.ConsumerGroupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
			Lag:             g.Lag,
		})
	}
	return out, nil
}

func (r *AdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	consumers, err := r.client.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("xinfo consumers %s/%s: %w", stream, group, err)
	}

	out := make([]domain.ConsumerInfo, 0, len(consumers))
	for _, c := range consumers {
		out = append(out, domain.ConsumerInfo{
			Name:     c.Name,
			Pending:  c.Pending,
			Idle:     c.Idle,
			Inactive: c.Inactive,
		})
	}
	return out, nil
}

func (r *AdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	pending, err := r.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending %s/%s: %w", stream, group, err)
	}

	return &domain.PendingMessageSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}

// GetPendingMessages pages through pending entries from startID. An empty
// consumer lists every consumer's entries.
func (r *AdminRepository) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	entries, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    group,
		Start:    startID,
		End:      "+",
		Count:    count,
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending ext %s/%s: %w", stream, group, err)
	}

	out := make([]domain.PendingMessageDetail, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.PendingMessageDetail{
			ID:         e.ID,
			Consumer:   e.Consumer,
			Idle:       e.Idle,
			Deliveries: e.RetryCount,
		})
	}
	return out, nil
}

// ClaimMessages moves idle entries to consumer and returns them as records so
// an operator can inspect what was stuck.
func (r *AdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.DiagnosticRecord, error) {
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim %s/%s: %w", stream, group, err)
	}

	recs, undecodable := decodeMessages(claimed, r.logger)
	r.logger.Info("claimed diagnostic records", "stream", stream, "group", group, "consumer", consumer, "count", len(recs), "undecodable", len(undecodable))
	return recs, nil
}

func (r *AdminRepository) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	n, err := r.client.XAck(ctx, stream, group, messageIDs...).Result()
	if err != nil {
		return 0, fmt.Errorf("xack %s/%s: %w", stream, group, err)
	}
	return n, nil
}

// TrimStream caps stream at maxLen entries and returns how many were evicted.
func (r *AdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	n, err := r.client.XTrimMaxLen(ctx, stream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("xtrim %s: %w", stream, err)
	}
	r.logger.Warn("trimmed diagnostic stream", "stream", stream, "maxlen", maxLen, "evicted", n)
	return n, nil
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "ERR no such key")
}
