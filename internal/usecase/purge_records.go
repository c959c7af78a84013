package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

// PurgeRecordsUseCase enforces the retention window on sunk diagnostic records.
type PurgeRecordsUseCase struct {
	purger    domain.RecordPurger
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

func NewPurgeRecordsUseCase(purger domain.RecordPurger, logger *slog.Logger, retention time.Duration) *PurgeRecordsUseCase {
	return &PurgeRecordsUseCase{
		purger:    purger,
		logger:    logger.With("component", "record_purger"),
		retention: retention,
		now:       time.Now,
	}
}

// PurgeOnce deletes records older than the retention window. A zero window
// disables purging.
func (uc *PurgeRecordsUseCase) PurgeOnce(ctx context.Context) (int64, error) {
	if uc.retention <= 0 {
		return 0, nil
	}
	cutoff := uc.now().UTC().Add(-uc.retention)
	n, err := uc.purger.PurgeRecordsBefore(ctx, cutoff)
	if err != nil {
		uc.logger.Error("failed to purge diagnostic records", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("purged diagnostic records", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run purges immediately and then on every tick until ctx is cancelled.
func (uc *PurgeRecordsUseCase) Run(ctx context.Context, interval time.Duration) {
	if uc.retention <= 0 {
		uc.logger.Info("diagnostic record retention disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	uc.PurgeOnce(ctx)
	for {
		select {
		case <-ticker.C:
			uc.PurgeOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
