package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/api/middleware"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/adapter/metrics"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain"
	"github.com/SYRONYX-S/edotstudio-web-dev-sub001/internal/domain/mocks"
)

const (
	freelancerSuccess = `{"success":true,"message":"Application received successfully. We will contact you when a suitable project becomes available."}`
	partnerSuccess    = `{"success":true,"message":"Partnership application received successfully. Our team will contact you soon."}`
	genericFailure    = `{"success":false,"message":"There was an error processing your application. Please try again."}`
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestIntakeHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		cfg            IntakeConfig
		body           string
		maxBodySize    int64
		expectedStatus int
		expectedBody   string
		expectedKind   string
		expectedStored string
	}{
		{
			name:           "Freelancer object",
			cfg:            FreelancerIntake,
			body:           `{"name":"Alice"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   freelancerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `{"name":"Alice"}`,
		},
		{
			name:           "Freelancer malformed",
			cfg:            FreelancerIntake,
			body:           `{malformed`,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   genericFailure,
			expectedKind:   domain.KindSubmissionFailed,
		},
		{
			name:           "Partner empty object",
			cfg:            PartnerIntake,
			body:           `{}`,
			expectedStatus: http.StatusOK,
			expectedBody:   partnerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `{}`,
		},
		{
			name:           "Partner zero-length body",
			cfg:            PartnerIntake,
			body:           "",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   genericFailure,
			expectedKind:   domain.KindSubmissionFailed,
		},
		{
			name:           "Array payload",
			cfg:            PartnerIntake,
			body:           `[1, 2, {"a": "b"}]`,
			expectedStatus: http.StatusOK,
			expectedBody:   partnerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `[1,2,{"a":"b"}]`,
		},
		{
			name:           "String payload",
			cfg:            FreelancerIntake,
			body:           `"hello"`,
			expectedStatus: http.StatusOK,
			expectedBody:   freelancerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `"hello"`,
		},
		{
			name:           "Number payload",
			cfg:            FreelancerIntake,
			body:           `42.5`,
			expectedStatus: http.StatusOK,
			expectedBody:   freelancerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `42.5`,
		},
		{
			name:           "Boolean payload",
			cfg:            PartnerIntake,
			body:           `false`,
			expectedStatus: http.StatusOK,
			expectedBody:   partnerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `false`,
		},
		{
			name:           "Null payload",
			cfg:            PartnerIntake,
			body:           `null`,
			expectedStatus: http.StatusOK,
			expectedBody:   partnerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `null`,
		},
		{
			name:           "Whitespace around value",
			cfg:            PartnerIntake,
			body:           "  \n{\"a\": 1}\n",
			expectedStatus: http.StatusOK,
			expectedBody:   partnerSuccess,
			expectedKind:   domain.KindSubmissionReceived,
			expectedStored: `{"a":1}`,
		},
		{
			name:           "Literal not-json",
			cfg:            PartnerIntake,
			body:           `not-json`,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   genericFailure,
			expectedKind:   domain.KindSubmissionFailed,
		},
		{
			name:           "Trailing garbage",
			cfg:            FreelancerIntake,
			body:           `{} {}`,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   genericFailure,
			expectedKind:   domain.KindSubmissionFailed,
		},
		{
			name:           "Payload Too Large",
			cfg:            FreelancerIntake,
			body:           `{"message": "this payload is definitely too large for the test limit"}`,
			maxBodySize:    16,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   genericFailure,
			expectedKind:   domain.KindSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mocks.MockRecorder{}
			maxSize := tt.maxBodySize
			if maxSize == 0 {
				maxSize = 1024
			}
			handler := NewIntakeHandler(tt.cfg, recorder, logger, maxSize, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/submit-"+tt.cfg.Name, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedBody, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			require.Len(t, recorder.Records, 1, "exactly one diagnostic record per request")
			rec := recorder.Records[0]
			assert.Equal(t, tt.expectedKind, rec.Kind)
			assert.Equal(t, tt.cfg.Name, rec.Endpoint)
			if tt.expectedKind == domain.KindSubmissionReceived {
				assert.Equal(t, tt.expectedStored, string(rec.Payload))
				assert.Empty(t, rec.Error)
			} else {
				assert.Nil(t, rec.Payload)
				assert.NotEmpty(t, rec.Error)
			}
		})
	}
}

func TestIntakeHandler_ReadFailure(t *testing.T) {
	recorder := &mocks.MockRecorder{}
	handler := NewIntakeHandler(FreelancerIntake, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)), 1024, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/submit-freelancer", errReader{})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, genericFailure, rr.Body.String())
	rec, ok := recorder.Last()
	require.True(t, ok)
	assert.Contains(t, rec.Error, "connection reset by peer")
	// Internal detail stays out of the response.
	assert.NotContains(t, rr.Body.String(), "connection reset")
}

func TestIntakeHandler_ResponsesAreStable(t *testing.T) {
	recorder := &mocks.MockRecorder{}
	handler := NewIntakeHandler(PartnerIntake, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)), 1024, nil)

	bodies := []string{`{"name":"Bob","company":"Acme"}`, `{"name":"Carol"}`, `[]`}
	for _, body := range bodies {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/submit-partner", strings.NewReader(body)))
		assert.Equal(t, partnerSuccess, rr.Body.String())
		assert.NotContains(t, rr.Body.String(), "Bob")
	}
}

func TestIntakeHandler_CarriesRequestContext(t *testing.T) {
	recorder := &mocks.MockRecorder{}
	handler := middleware.RequestID(NewIntakeHandler(FreelancerIntake, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)), 1024, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/submit-freelancer", bytes.NewBufferString(`{}`))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	req.RemoteAddr = "198.51.100.4:40000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec, ok := recorder.Last()
	require.True(t, ok)
	assert.Equal(t, "req-42", rec.RequestID)
	assert.Equal(t, "198.51.100.4:40000", rec.RemoteAddr)
}

func TestIntakeHandler_Metrics(t *testing.T) {
	m := metrics.NewIntakeMetricsWith(prometheus.NewRegistry())
	handler := NewIntakeHandler(PartnerIntake, &mocks.MockRecorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)), 1024, m)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/submit-partner", strings.NewReader(`{}`)))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/submit-partner", strings.NewReader(`{`)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("partner", "received")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("partner", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BytesTotal))
}

func TestReadPayloadWrapsErrBodyParse(t *testing.T) {
	_, _, err := readPayload(strings.NewReader("{"))
	assert.True(t, errors.Is(err, ErrBodyParse))

	_, _, err = readPayload(errReader{})
	assert.True(t, errors.Is(err, ErrBodyParse))
}
