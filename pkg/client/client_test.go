package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/process", r.URL.Path)
		var req pipeline.ProcessRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ContentID == "bad" {
			http.Error(w, "content_id or object_key is required", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(pipeline.ProcessResponse{RunID: "study-" + req.ContentID, DedupeSeenCount: 2})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Process(context.Background(), pipeline.ProcessRequest{ContentID: "c1", Job: pipeline.JobStudy})
	require.NoError(t, err)
	assert.Equal(t, "study-c1", resp.RunID)
	assert.Equal(t, 2, resp.DedupeSeenCount)

	_, err = c.Process(context.Background(), pipeline.ProcessRequest{ContentID: "bad"})
	assert.ErrorContains(t, err, "unexpected status 400: content_id or object_key is required")
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/runs/run-1" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(pipeline.RunStatus{RunID: "run-1", State: "succeeded"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	st, err := c.Status(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", st.State)

	_, err = c.Status(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestStudy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		assert.Equal(t, "notes.png", header.Filename)
		assert.Equal(t, "3", r.FormValue("quiz_count"))
		assert.Equal(t, "false", r.FormValue("enable_chunking"))
		assert.Empty(t, r.FormValue("chunk_size"))

		w.Header().Set("Content-Type", "application/json")
		if string(data) == "blank" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"success":false}`)
			return
		}
		io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	opts := &pipeline.StudyOptions{QuizCount: 3, EnableChunking: pipeline.Bool(false)}

	body, err := c.Study(context.Background(), "notes.png", strings.NewReader("png bytes"), opts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(body))

	body, err = c.Study(context.Background(), "notes.png", strings.NewReader("blank"), opts)
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.JSONEq(t, `{"success":false}`, string(body))
}

func TestEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.EstimateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 12000, req.TextLength)
		io.WriteString(w, `{"estimated_time_seconds": 40, "chunks_required": 3, "complexity": "medium", "recommend_chunking": true}`)
	}))
	defer srv.Close()

	est, err := New(srv.URL).Estimate(context.Background(), pipeline.EstimateRequest{TextLength: 12000})
	require.NoError(t, err)
	assert.Equal(t, pipeline.EstimateResponse{EstimatedSeconds: 40, ChunksRequired: 3, Complexity: "medium", RecommendChunking: true}, *est)
}
