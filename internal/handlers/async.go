// Package handlers exposes the study pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-study-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// Enqueuer starts runs in the background and reports their status
type Enqueuer interface {
	RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error)
}

// SubmissionLedger counts repeated submissions of the same content
type SubmissionLedger interface {
	Record(ctx context.Context, contentID string, pipeline string, pipelineVersion int) (int, error)
}

// AsyncHandler handles asynchronous study requests
type AsyncHandler struct {
	runner Enqueuer
	ledger SubmissionLedger
	log    *logger.Logger
}

// NewAsyncHandler creates a new async handler. ledger may be nil.
func NewAsyncHandler(runner Enqueuer, ledger SubmissionLedger, log *logger.Logger) *AsyncHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AsyncHandler{
		runner: runner,
		ledger: ledger,
		log:    log,
	}
}

// HandleProcessAsync handles POST /v1/process - enqueues a run and returns immediately
func (h *AsyncHandler) HandleProcessAsync(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if req.ContentID == "" && req.ObjectKey == "" {
		http.Error(w, "content_id or object_key is required", http.StatusBadRequest)
		return
	}
	if req.Job == "" {
		req.Job = pipeline.JobStudy
	}
	if req.Options != nil && req.Options.QuizCount < 0 {
		http.Error(w, "quiz_count must not be negative", http.StatusBadRequest)
		return
	}

	log := h.log.With("content_id", req.ContentID, "object_key", req.ObjectKey, "job", req.Job)

	// Record the submission before enqueueing so retries are counted too
	seen := 0
	if h.ledger != nil {
		source := req.ContentID
		if source == "" {
			source = req.ObjectKey
		}
		n, err := h.ledger.Record(r.Context(), source, req.Job, req.Versions[pipeline.DerivedTypeStudyResult])
		if err != nil {
			log.Warn("failed to record submission", "error", err)
		} else {
			seen = n
		}
	}

	runID, err := h.runner.RunAsync(r.Context(), req)
	if err != nil {
		log.Error("failed to enqueue run", "error", err)
		http.Error(w, fmt.Sprintf("Failed to enqueue workflow: %v", err), http.StatusInternalServerError)
		return
	}

	log.Info("run enqueued", "run_id", runID, "dedupe_seen_count", seen)

	writeJSON(w, http.StatusAccepted, pipeline.ProcessResponse{
		RunID:           runID,
		DedupeSeenCount: seen,
	})
}

// HandleStatus handles GET /v1/runs/{runID} - returns run status
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	status, err := h.runner.GetStatus(r.Context(), runID)
	if errors.Is(err, dbosruntime.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("failed to get run status", "run_id", runID, "error", err)
		http.Error(w, "Failed to get run status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
