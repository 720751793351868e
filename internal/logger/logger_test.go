package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeHashesUserIDAndRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := (&Logger{SugaredLogger: zap.New(core).Sugar()}).WithHashSalt("salt")

	l.Info("processing", "user_id", "user-42", "llm_api_key", "sk-123", "stage", "validate")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.True(t, strings.HasPrefix(fields["user_id"].(string), "hash:"))
	assert.NotContains(t, fields["user_id"], "user-42")
	assert.Equal(t, "[REDACTED]", fields["llm_api_key"])
	assert.Equal(t, "validate", fields["stage"])
}

func TestHashIsStable(t *testing.T) {
	l := Nop().WithHashSalt("s")
	assert.Equal(t, l.hash("abc"), l.hash("abc"))
	assert.NotEqual(t, l.hash("abc"), l.hash("abd"))
	assert.Equal(t, "", l.hash(""))
}
