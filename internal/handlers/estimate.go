package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tendant/simple-study-pipeline/internal/chunking"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// EstimateHandler predicts processing cost for a text length
type EstimateHandler struct {
	chunkSize   int
	concurrency int
}

// NewEstimateHandler uses chunkSize and concurrency when a request omits them
func NewEstimateHandler(chunkSize, concurrency int) *EstimateHandler {
	return &EstimateHandler{chunkSize: chunkSize, concurrency: concurrency}
}

// HandleEstimate handles POST /v1/estimate
func (h *EstimateHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.TextLength < 0 {
		http.Error(w, "text_length must not be negative", http.StatusBadRequest)
		return
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = h.chunkSize
	}
	if req.MaxConcurrency == 0 {
		req.MaxConcurrency = h.concurrency
	}
	est := chunking.EstimateProcessingTime(req.TextLength, req.ChunkSize, req.MaxConcurrency)
	writeJSON(w, http.StatusOK, pipeline.EstimateResponse(est))
}
