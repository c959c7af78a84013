package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.IntakeServerAddr)
	assert.Equal(t, ":9091", cfg.AdminServerAddr)
	assert.Equal(t, int64(1048576), cfg.MaxBodySize)
	assert.Equal(t, time.Second, cfg.ConsumerRetryBackoff)
	assert.Equal(t, 720*time.Hour, cfg.DiagnosticRetention)
	assert.False(t, cfg.StreamEnabled())
	assert.Empty(t, cfg.RedactFieldList())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"LOG_LEVEL":           "debug",
		"REDIS_URL":           "redis://localhost:6379/0",
		"REDACT_FIELDS":       " email, phone ,,",
		"MAX_BODY_SIZE_BYTES": "2048",
	}})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.StreamEnabled())
	assert.Equal(t, []string{"email", "phone"}, cfg.RedactFieldList())
	assert.Equal(t, int64(2048), cfg.MaxBodySize)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "zero body size", env: map[string]string{"MAX_BODY_SIZE_BYTES": "0"}},
		{name: "non numeric body size", env: map[string]string{"MAX_BODY_SIZE_BYTES": "big"}},
		{name: "bad backoff", env: map[string]string{"CONSUMER_RETRY_BACKOFF": "soon"}},
		{name: "negative retention", env: map[string]string{"DIAGNOSTIC_RETENTION": "-1h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(env.Options{Environment: tt.env})
			assert.Error(t, err)
		})
	}
}
