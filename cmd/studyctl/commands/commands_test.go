package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEstimateCommand(t *testing.T) {
	var got pipeline.EstimateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/estimate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(pipeline.EstimateResponse{EstimatedSeconds: 12, ChunksRequired: 1, Complexity: "low"})
	}))
	defer srv.Close()

	out, err := execute(t, "estimate", "--server", srv.URL, "--length", "3000", "--chunk-size", "2000")
	require.NoError(t, err)
	assert.Equal(t, 3000, got.TextLength)
	assert.Equal(t, 2000, got.ChunkSize)

	var est pipeline.EstimateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.Equal(t, 12, est.EstimatedSeconds)
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.RunStatus{RunID: "run-9", State: "running"})
	}))
	defer srv.Close()

	out, err := execute(t, "status", "--server", srv.URL, "run-9")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "running"`)

	_, err = execute(t, "status", "--server", srv.URL)
	assert.Error(t, err)
}

func TestStudyOptionsOnlySetsChangedToggles(t *testing.T) {
	require.NoError(t, submitCmd.ParseFlags([]string{"--no-quiz", "--quiz-count", "4"}))
	opts := studyOptions(submitCmd)

	require.NotNil(t, opts.GenerateQuiz)
	assert.False(t, *opts.GenerateQuiz)
	assert.Nil(t, opts.GenerateSummary)
	assert.Nil(t, opts.EnableChunking)
	assert.Equal(t, 4, opts.QuizCount)
}

func TestFinished(t *testing.T) {
	assert.True(t, finished("succeeded"))
	assert.True(t, finished("failed"))
	assert.False(t, finished("pending"))
	assert.False(t, finished("running"))
}
