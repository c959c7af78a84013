package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

type fakeAdminRepo struct {
	groupsErr error
	trimmedTo int64
}

func (f *fakeAdminRepo) GetStreamInfo(ctx context.Context, stream string) (*domain.StreamInfo, error) {
	return &domain.StreamInfo{Name: stream, Length: 12}, nil
}

func (f *fakeAdminRepo) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return []domain.ConsumerGroupInfo{{Name: "record-shippers", Consumers: 1}}, nil
}

func (f *fakeAdminRepo) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	return []domain.ConsumerInfo{{Name: "host-1"}}, nil
}

func (f *fakeAdminRepo) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return &domain.PendingMessageSummary{Total: 3}, nil
}

func (f *fakeAdminRepo) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	return []domain.PendingMessageDetail{{ID: "1-0"}}, nil
}

func (f *fakeAdminRepo) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.DiagnosticRecord, error) {
	return []domain.DiagnosticRecord{{ID: "r1"}}, nil
}

func (f *fakeAdminRepo) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	return int64(len(messageIDs)), nil
}

func (f *fakeAdminRepo) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	f.trimmedTo = maxLen
	return 7, nil
}

func newAdminMux(repo *fakeAdminRepo) *http.ServeMux {
	h := NewAdminHandler(usecase.NewAdminStreamUseCase(repo), slog.New(slog.NewTextHandler(io.Discard, nil)), "intake_diagnostics")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	h.Register(mux)
	return mux
}

func TestAdminHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		repo           *fakeAdminRepo
		expectedStatus int
		expectedBody   string
	}{
		{name: "Health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK, expectedBody: `{"status":"ok"}`},
		{name: "Stream info", method: http.MethodGet, path: "/admin/streams/intake_diagnostics", expectedStatus: http.StatusOK, expectedBody: `"length":12`},
		{name: "Groups", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups", expectedStatus: http.StatusOK, expectedBody: `"name":"record-shippers"`},
		{name: "Unknown stream", method: http.MethodGet, path: "/admin/streams/other/groups", expectedStatus: http.StatusNotFound, expectedBody: `unknown stream`},
		{name: "Repo error", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups", repo: &fakeAdminRepo{groupsErr: errors.New("NOGROUP")}, expectedStatus: http.StatusInternalServerError, expectedBody: `internal server error`},
		{name: "Consumers", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups/g/consumers", expectedStatus: http.StatusOK, expectedBody: `"name":"host-1"`},
		{name: "Pending summary", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups/g/pending", expectedStatus: http.StatusOK, expectedBody: `"total":3`},
		{name: "Pending messages", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups/g/pending/messages?count=5", expectedStatus: http.StatusOK, expectedBody: `"id":"1-0"`},
		{name: "Pending bad count", method: http.MethodGet, path: "/admin/streams/intake_diagnostics/groups/g/pending/messages?count=x", expectedStatus: http.StatusBadRequest, expectedBody: `invalid count`},
		{name: "Claim", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/claim", body: `{"consumer":"c","min_idle_time":"1m","message_ids":["1-0"]}`, expectedStatus: http.StatusOK, expectedBody: `"record_id":"r1"`},
		{name: "Claim bad idle", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/claim", body: `{"consumer":"c","min_idle_time":"soon","message_ids":["1-0"]}`, expectedStatus: http.StatusBadRequest, expectedBody: `min_idle_time`},
		{name: "Claim no ids", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/claim", body: `{"consumer":"c","min_idle_time":"1m"}`, expectedStatus: http.StatusBadRequest, expectedBody: `message_ids cannot be empty`},
		{name: "Ack", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/ack", body: `{"message_ids":["1-0","2-0"]}`, expectedStatus: http.StatusOK, expectedBody: `{"acknowledged":2}`},
		{name: "Ack empty", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/ack", body: `{"message_ids":[]}`, expectedStatus: http.StatusBadRequest, expectedBody: `message_ids cannot be empty`},
		{name: "Ack bad body", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/groups/g/ack", body: `{`, expectedStatus: http.StatusBadRequest, expectedBody: `invalid request body`},
		{name: "Trim", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/trim", body: `{"maxlen":100}`, expectedStatus: http.StatusOK, expectedBody: `{"trimmed":7}`},
		{name: "Trim zero", method: http.MethodPost, path: "/admin/streams/intake_diagnostics/trim", body: `{"maxlen":0}`, expectedStatus: http.StatusBadRequest, expectedBody: `maxlen`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.repo
			if repo == nil {
				repo = &fakeAdminRepo{}
			}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			newAdminMux(repo).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}
