package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
)

// MockRecordRepository is a mock implementation of domain.RecordRepository for testing.
type MockRecordRepository struct {
	mu              sync.Mutex
	BufferedRecords []domain.DiagnosticRecord
	WrittenRecords  []domain.DiagnosticRecord
	AckedMessageIDs []string
	DLQRecords      []domain.DiagnosticRecord
	ReadBatchResult []domain.DiagnosticRecord
	WriteCalls      int
	// RejectIDs fails any WriteRecordBatch call containing one of these record IDs.
	RejectIDs map[string]bool
	BufferErr error
	ReadErr   error
	WriteErr  error
	AckErr    error
	DLQErr    error
}

func (m *MockRecordRepository) BufferRecord(ctx context.Context, rec domain.DiagnosticRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BufferErr != nil {
		return m.BufferErr
	}
	m.BufferedRecords = append(m.BufferedRecords, rec)
	return nil
}

func (m *MockRecordRepository) ReadRecordBatch(ctx context.Context, group, consumer string, count int) ([]domain.DiagnosticRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockRecordRepository) WriteRecordBatch(ctx context.Context, recs []domain.DiagnosticRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	for _, rec := range recs {
		if m.RejectIDs[rec.ID] {
			return fmt.Errorf("rejected record %s", rec.ID)
		}
	}
	m.WrittenRecords = append(m.WrittenRecords, recs...)
	return nil
}

func (m *MockRecordRepository) AcknowledgeRecords(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockRecordRepository) MoveToDLQ(ctx context.Context, recs []domain.DiagnosticRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQRecords = append(m.DLQRecords, recs...)
	return nil
}

// Buffered returns a snapshot of the buffered records.
func (m *MockRecordRepository) Buffered() []domain.DiagnosticRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DiagnosticRecord, len(m.BufferedRecords))
	copy(out, m.BufferedRecords)
	return out
}

// MockRecorder captures every record passed to it.
type MockRecorder struct {
	mu      sync.Mutex
	Records []domain.DiagnosticRecord
}

func (m *MockRecorder) Record(ctx context.Context, rec domain.DiagnosticRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
}

// Last returns the most recent record, or false if none was recorded.
func (m *MockRecorder) Last() (domain.DiagnosticRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return domain.DiagnosticRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}
