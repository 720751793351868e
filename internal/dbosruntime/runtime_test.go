package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/db", Concurrency: -2}
	cfg.WithDefaults()

	assert.Equal(t, "simple-study-pipeline", cfg.AppName)
	assert.Equal(t, "default", cfg.QueueName)
	assert.Equal(t, 0, cfg.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestNewRuntimeRequiresDatabaseURL(t *testing.T) {
	_, err := NewRuntime(context.Background(), Config{})
	require.ErrorIs(t, err, ErrNoDatabaseURL)
}

func TestWorkflowStatusState(t *testing.T) {
	cases := map[string]string{
		"ENQUEUED":                       "pending",
		"PENDING":                        "running",
		"SUCCESS":                        "succeeded",
		"ERROR":                          "failed",
		"MAX_RECOVERY_ATTEMPTS_EXCEEDED": "failed",
		"CANCELLED":                      "cancelled",
		"SOMETHING_NEW":                  "pending",
	}
	for status, want := range cases {
		assert.Equal(t, want, WorkflowStatusInfo{Status: status}.State(), status)
	}
}
