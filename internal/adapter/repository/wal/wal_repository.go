package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".log"
	filePerm      = 0644
	maxLineSize   = 4 << 20
)

// ErrWALFull is returned when a write would exceed the configured disk cap.
var ErrWALFull = errors.New("WAL max total size exceeded")

// WALRepository is a file-segment write-ahead log of diagnostic records, one
// JSON document per line.
type WALRepository struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	totalSize      int64
	lastSeq        int64

	// Segments fully handed to the last successful Replay; Truncate removes only these.
	replayed []string
}

// NewWALRepository opens (or creates) a WAL in dir.
func NewWALRepository(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*WALRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	w := &WALRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "wal_repository"),
	}

	total, err := w.calculateTotalSize()
	if err != nil {
		return nil, err
	}
	w.totalSize = total

	if err := w.openLatestSegment(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write appends rec to the current segment, rotating when it grows past the segment size.
func (w *WALRepository) Write(ctx context.Context, rec domain.DiagnosticRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic record for WAL: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.totalSize+int64(len(data)) > w.maxTotalSize {
		return fmt.Errorf("%w (%d + %d > %d)", ErrWALFull, w.totalSize, len(data), w.maxTotalSize)
	}

	if w.currentSegment == nil {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	n, err := w.currentSegment.Write(data)
	w.currentSize += int64(n)
	w.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to WAL segment: %w", err)
	}

	if w.currentSize >= w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			w.logger.Error("failed to rotate WAL segment", "error", err)
		}
	}

	return nil
}

// Replay calls handler for every record in the segments that exist when it
// starts, oldest first. Lines that fail to decode are skipped. The lock is only
// held to seal the current segment, so writes during replay land in a new
// segment that a following Truncate leaves alone.
func (w *WALRepository) Replay(ctx context.Context, handler func(rec domain.DiagnosticRecord) error) error {
	w.mu.Lock()
	w.closeCurrent()
	w.replayed = nil
	segments, err := w.getSortedSegments()
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		w.logger.Info("WAL is empty, nothing to replay")
		return nil
	}
	w.logger.Info("starting WAL replay", "segment_count", len(segments))

	for _, segmentPath := range segments {
		if err := w.replaySegment(ctx, segmentPath, handler); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.replayed = segments
	w.mu.Unlock()

	w.logger.Info("WAL replay completed")
	return nil
}

func (w *WALRepository) replaySegment(ctx context.Context, path string, handler func(rec domain.DiagnosticRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec domain.DiagnosticRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			w.logger.Warn("failed to unmarshal record from WAL, skipping", "error", err, "segment", path)
			continue
		}
		if err := handler(rec); err != nil {
			w.logger.Error("WAL replay handler failed, stopping replay", "error", err)
			return fmt.Errorf("replay handler failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return nil
}

// Truncate removes the segments covered by the last successful Replay.
// Segments written since then are kept for the next replay.
func (w *WALRepository) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, segmentPath := range w.replayed {
		if err := os.Remove(segmentPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Error("failed to remove WAL segment", "path", segmentPath, "error", err)
		}
	}
	removed := len(w.replayed)
	w.replayed = nil

	total, err := w.calculateTotalSize()
	if err != nil {
		return err
	}
	w.totalSize = total

	w.logger.Info("WAL truncated", "segments_removed", removed)
	return nil
}

func (w *WALRepository) closeCurrent() {
	if w.currentSegment == nil {
		return
	}
	if err := w.currentSegment.Sync(); err != nil {
		w.logger.Error("failed to sync WAL segment", "error", err)
	}
	if err := w.currentSegment.Close(); err != nil {
		w.logger.Error("failed to close WAL segment", "error", err)
	}
	w.currentSegment = nil
}

func (w *WALRepository) rotate() error {
	w.closeCurrent()

	// Segment names sort lexically in creation order.
	seq := time.Now().UnixNano()
	if seq <= w.lastSeq {
		seq = w.lastSeq + 1
	}
	w.lastSeq = seq

	path := filepath.Join(w.dir, fmt.Sprintf("%s%020d%s", segmentPrefix, seq, segmentSuffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new WAL segment %s: %w", path, err)
	}

	w.currentSegment = f
	w.currentSize = 0
	w.logger.Debug("rotated to new WAL segment", "path", path)
	return nil
}

func (w *WALRepository) openLatestSegment() error {
	segments, err := w.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return w.rotate()
	}

	latest := segments[len(segments)-1]
	var seq int64
	if _, err := fmt.Sscanf(filepath.Base(latest), segmentPrefix+"%d"+segmentSuffix, &seq); err == nil {
		w.lastSeq = seq
	}

	stat, err := os.Stat(latest)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latest, err)
	}
	if stat.Size() >= w.maxSegmentSize {
		return w.rotate()
	}

	f, err := os.OpenFile(latest, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latest, err)
	}

	w.currentSegment = f
	w.currentSize = stat.Size()
	w.logger.Info("opened existing WAL segment", "path", latest, "size", w.currentSize)
	return nil
}

func (w *WALRepository) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if isSegment(entry) {
			segments = append(segments, filepath.Join(w.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (w *WALRepository) calculateTotalSize() (int64, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read WAL directory: %w", err)
	}
	var total int64
	for _, entry := range entries {
		if !isSegment(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

func isSegment(entry os.DirEntry) bool {
	return !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) && strings.HasSuffix(entry.Name(), segmentSuffix)
}

// Close syncs and closes the current segment.
func (w *WALRepository) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentSegment == nil {
		return nil
	}
	err := w.currentSegment.Close()
	w.currentSegment = nil
	return err
}
