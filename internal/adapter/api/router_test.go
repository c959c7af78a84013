package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/handler"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/middleware"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/pii"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain/mocks"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/pkg/config"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/usecase"
)

const (
	freelancerOK = `{"success":true,"message":"Application received successfully. We will contact you when a suitable project becomes available."}`
	partnerOK    = `{"success":true,"message":"Partnership application received successfully. Our team will contact you soon."}`
	failure      = `{"success":false,"message":"There was an error processing your application. Please try again."}`
)

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockRecordRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	buffer := &mocks.MockRecordRepository{}
	recorder := usecase.NewRecordDiagnosticsUseCase(logger, pii.NewRedactor(nil, logger), buffer, nil, nil)
	return NewRouter(&config.Config{MaxBodySize: 1 << 20}, logger, recorder, nil), buffer
}

func TestRouter_Scenarios(t *testing.T) {
	router, buffer := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		resp   string
	}{
		{name: "freelancer object", path: FreelancerPath, body: `{"name":"Alice"}`, status: http.StatusOK, resp: freelancerOK},
		{name: "freelancer malformed", path: FreelancerPath, body: `{malformed`, status: http.StatusInternalServerError, resp: failure},
		{name: "partner empty object", path: PartnerPath, body: `{}`, status: http.StatusOK, resp: partnerOK},
		{name: "partner empty body", path: PartnerPath, body: "", status: http.StatusInternalServerError, resp: failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.resp, rr.Body.String())
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		})
	}

	recs := buffer.Buffered()
	require.Len(t, recs, len(tests))
	assert.Equal(t, domain.KindSubmissionReceived, recs[0].Kind)
	assert.Equal(t, domain.KindSubmissionFailed, recs[1].Kind)
	assert.Equal(t, "partner", recs[2].Endpoint)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.RequestID)
		assert.NotEmpty(t, rec.ID)
	}
}

func TestRouter_OnlyPost(t *testing.T) {
	router, buffer := newTestRouter(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, PartnerPath, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, method)
	}
	assert.Empty(t, buffer.Buffered())
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestRouter_ConcurrentSubmissionsAreIndependent(t *testing.T) {
	router, buffer := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			path, body, want := FreelancerPath, `{"i":1}`, http.StatusOK
			if i%2 == 1 {
				path, body, want = PartnerPath, `{`, http.StatusInternalServerError
			}
			resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != want {
				errs <- assert.AnError
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Len(t, buffer.Buffered(), n)
}

func TestAdminRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("log-only mode has no stream admin", func(t *testing.T) {
		router := NewAdminRouter(nil, handler.NewSSEBroker(ctx, logger), logger)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/streams/intake_diagnostics/groups", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})
}
