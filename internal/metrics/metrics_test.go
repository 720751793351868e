package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.BackendAttempt("tesseract", true)
	r.BackendAttempt("tesseract", false)
	r.BackendAttempt("tesseract", false)
	r.ChunkResult(true)
	r.Run(false)
	r.ObserveStage("validate", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.backendAttempt.WithLabelValues("tesseract", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.backendAttempt.WithLabelValues("tesseract", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chunkResults.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStage("x", time.Second)
		r.BackendAttempt("x", true)
		r.ChunkResult(false)
		r.Run(true)
		r.CacheLookup(true)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	r := New()
	r.Run(true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `study_pipeline_runs_total{status="completed"} 1`)
}
