package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// ProcessHandler runs /v1/process requests in the request goroutine. It is
// used where no DBOS queue is available.
type ProcessHandler struct {
	runner SyncRunner
	log    *logger.Logger
}

// NewProcessHandler creates a synchronous process handler
func NewProcessHandler(runner SyncRunner, log *logger.Logger) *ProcessHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessHandler{runner: runner, log: log}
}

// processResult is the synchronous /v1/process response
type processResult struct {
	RunID   string          `json:"run_id"`
	Success bool            `json:"success"`
	Cached  bool            `json:"cached"`
	Skipped bool            `json:"skipped,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// HandleProcess handles POST /v1/process synchronously
func (h *ProcessHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
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

	runID := uuid.NewString()
	log := h.log.With("run_id", runID, "content_id", req.ContentID, "job", req.Job)
	log.Info("processing request", "object_key", req.ObjectKey)

	res, err := h.runner.Run(&workflows.WorkflowContext{
		Ctx:     r.Context(),
		Request: req,
		RunID:   runID,
	})
	if err != nil {
		log.Error("workflow execution failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, workflows.ErrWorkflowNotFound) || errors.Is(err, workflows.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Workflow execution failed: %v", err), status)
		return
	}

	out := processResult{RunID: runID, Success: res.Success}
	out.Cached, _ = res.Outputs["cached"].(bool)
	out.Skipped, _ = res.Outputs["skipped"].(bool)
	if body, ok := res.Outputs["result_json"].(string); ok && body != "" {
		out.Result = json.RawMessage(body)
	}

	status := http.StatusOK
	if !res.Success {
		log.Warn("workflow completed with errors", "message", res.Message)
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, out)
}
