package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// SyncRunner runs a workflow in the request goroutine
type SyncRunner interface {
	Run(wctx *workflows.WorkflowContext) (*workflows.WorkflowResult, error)
}

// StudyHandler processes uploaded images synchronously
type StudyHandler struct {
	runner      SyncRunner
	objects     storage.ObjectStore
	maxSize     int64
	keepUploads bool
	log         *logger.Logger
}

// NewStudyHandler creates a handler that stores uploads in objects and runs
// the study job on them. Uploads are removed after processing unless
// keepUploads is set.
func NewStudyHandler(runner SyncRunner, objects storage.ObjectStore, maxSize int64, keepUploads bool, log *logger.Logger) *StudyHandler {
	if log == nil {
		log = logger.Nop()
	}
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &StudyHandler{
		runner:      runner,
		objects:     objects,
		maxSize:     maxSize,
		keepUploads: keepUploads,
		log:         log,
	}
}

// HandleStudy handles POST /v1/study - multipart upload with an "image" file
// part, returns the processing result
func (h *StudyHandler) HandleStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Image file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Invalid multipart request: %v", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read image: %v", err), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "image file is empty", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxSize {
		http.Error(w, "Image file too large", http.StatusRequestEntityTooLarge)
		return
	}

	opts, err := formOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	log := h.log.With("run_id", runID, "file_name", header.Filename)

	key := storage.UploadKey(runID, header.Filename)
	if err := h.objects.Upload(ctx, key, data); err != nil {
		log.Error("failed to store upload", "error", err)
		http.Error(w, "Failed to store image", http.StatusInternalServerError)
		return
	}
	if !h.keepUploads {
		defer func() {
			if err := h.objects.Delete(ctx, key); err != nil {
				log.Warn("failed to remove upload", "key", key, "error", err)
			}
		}()
	}

	res, err := h.runner.Run(&workflows.WorkflowContext{
		Ctx:   ctx,
		RunID: runID,
		Request: pipeline.ProcessRequest{
			ObjectKey: key,
			Job:       pipeline.JobStudy,
			UserID:    r.FormValue("user_id"),
			Options:   opts,
		},
	})
	var body string
	if res != nil {
		body, _ = res.Outputs["result_json"].(string)
	}
	if body == "" {
		log.Error("study run failed", "error", err)
		msg := "no result"
		if err != nil {
			msg = err.Error()
		} else if res != nil && res.Message != "" {
			msg = res.Message
		}
		http.Error(w, fmt.Sprintf("Processing failed: %s", msg), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// formOptions reads optional study settings from form values
func formOptions(r *http.Request) (*pipeline.StudyOptions, error) {
	opts := &pipeline.StudyOptions{}
	bools := map[string]**bool{
		"generate_summary":     &opts.GenerateSummary,
		"generate_explanation": &opts.GenerateExplanation,
		"generate_quiz":        &opts.GenerateQuiz,
		"enable_chunking":      &opts.EnableChunking,
	}
	for name, dst := range bools {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", name)
		}
		*dst = pipeline.Bool(b)
	}

	ints := []struct {
		name     string
		dst      *int
		min, max int
	}{
		{"quiz_count", &opts.QuizCount, 1, 20},
		{"chunk_size", &opts.ChunkSize, 1000, 8000},
		{"max_concurrency", &opts.MaxConcurrency, 1, 5},
	}
	for _, f := range ints {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < f.min || n > f.max {
			return nil, fmt.Errorf("%s must be between %d and %d", f.name, f.min, f.max)
		}
		*f.dst = n
	}
	return opts, nil
}
