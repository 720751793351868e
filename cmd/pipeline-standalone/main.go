package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-study-pipeline/internal/bootstrap"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/handlers"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/sample"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// Standalone study pipeline for quick testing
// Uses in-memory repository + filesystem storage (./dev-data)
// No external simple-content server or database needed
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	lg = lg.WithHashSalt(cfg.LogHashSalt)
	defer lg.Sync()

	lg.Info("pipeline standalone",
		"mode", "embedded (in-memory DB + filesystem storage)",
		"storage_dir", cfg.Storage.Dir,
		"http_addr", cfg.StandaloneAddr,
	)

	ctx := context.Background()
	rec := metrics.New()

	components, err := bootstrap.Build(ctx, cfg, lg, rec)
	if err != nil {
		lg.Fatal("failed to build pipeline", "error", err)
	}
	defer components.Close()

	// Initialize simple-content service with development preset
	// This gives us: in-memory repository + filesystem storage
	svc, cleanup, err := presets.NewDevelopment(
		presets.WithDevStorage(cfg.Storage.Dir),
	)
	if err != nil {
		lg.Fatal("failed to initialize simple-content service", "error", err)
	}
	defer cleanup()

	contentReader := storage.NewContentReader(svc)
	derivedWriter := storage.NewDerivedWriter(svc)

	// Synchronous runner, no DBOS
	workflowRunner := workflows.NewWorkflowRunner(nil, lg)
	workflowRunner.Register(pipeline.JobStudy, workflows.NewStudyWorkflow(contentReader, derivedWriter, components.Engine,
		workflows.WithObjectStore(components.Objects),
		workflows.WithResultCache(components.Results),
		workflows.WithLogger(lg),
		workflows.WithTimeout(cfg.ProcessTimeout),
		workflows.WithMaxImageSize(cfg.Pipeline.MaxImageSize),
	))

	smoke := &smokeTest{runner: workflowRunner, service: svc, log: lg}
	router := handlers.NewRouter(handlers.Routes{
		Mode:     "standalone",
		Process:  handlers.NewProcessHandler(workflowRunner, lg),
		Study:    handlers.NewStudyHandler(workflowRunner, components.Objects, cfg.Pipeline.MaxImageSize, cfg.KeepUploads, lg),
		Estimate: handlers.NewEstimateHandler(cfg.Pipeline.ChunkSize, cfg.Pipeline.MaxConcurrency),
		Metrics:  rec.Handler(),
		Extra: func(r chi.Router) {
			r.Get("/test", smoke.handle)
			r.Post("/test", smoke.handle)
		},
	})

	server := &http.Server{
		Addr:              cfg.StandaloneAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		lg.Info("pipeline standalone ready", "addr", cfg.StandaloneAddr)
		log.Printf("")
		log.Printf("Quick test:")
		log.Printf("  curl http://localhost%s/v1/test", cfg.StandaloneAddr)
		log.Printf("")
		log.Printf("Available endpoints:")
		log.Printf("  GET  /health           - Health check")
		log.Printf("  GET  /metrics          - Prometheus metrics")
		log.Printf("  POST /v1/process       - Process content (requires existing content_id)")
		log.Printf("  POST /v1/study         - Upload an image (multipart field \"image\") and get study material")
		log.Printf("  POST /v1/estimate      - Estimate processing time for a text length")
		log.Printf("  GET  /v1/test          - Run end-to-end test (upload + process + verify)")
		log.Printf("")
		log.Printf("For production-like testing with separate processes:")
		log.Printf("  Terminal 1: cd ../simple-content && go run ./cmd/server-configured")
		log.Printf("  Terminal 2: CONTENT_API_URL=http://localhost:4000 go run ./cmd/pipeline-worker")
		log.Printf("  Terminal 3: go run ./examples/trigger/main.go")
		log.Printf("")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
		return
	}

	lg.Info("server stopped")
}

// smokeTest runs an end-to-end study pass against the embedded service
type smokeTest struct {
	runner  *workflows.WorkflowRunner
	service simplecontent.Service
	log     *logger.Logger
}

// handle serves /v1/test
func (s *smokeTest) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.log.Info("running end-to-end test")

	// Step 1: Render and upload a sample note
	image, err := sample.NoteImage(nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Sample image failed: %v", err), http.StatusInternalServerError)
		return
	}

	content, err := s.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TenantID:     uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Name:         "Sample Study Note",
		DocumentType: "image/png",
		Reader:       bytes.NewReader(image),
		FileName:     "sample-note.png",
		Tags:         []string{"test", "study"},
	})
	if err != nil {
		s.log.Error("failed to upload content", "error", err)
		http.Error(w, fmt.Sprintf("Upload failed: %v", err), http.StatusInternalServerError)
		return
	}
	s.log.Info("content uploaded", "content_id", content.ID.String(), "status", content.Status)

	// Step 2: Run the study workflow
	runID := uuid.NewString()
	result, err := s.runner.Run(&workflows.WorkflowContext{
		Ctx: ctx,
		Request: pipeline.ProcessRequest{
			ContentID: content.ID.String(),
			Job:       pipeline.JobStudy,
			Versions: map[string]int{
				pipeline.DerivedTypeStudyResult: 1,
			},
			Metadata: map[string]string{
				"mime": "image/png",
			},
		},
		RunID: runID,
	})
	if err != nil {
		s.log.Error("workflow execution failed", "run_id", runID, "error", err)
		http.Error(w, fmt.Sprintf("Workflow failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Step 3: List derived content
	derived, err := s.service.ListDerivedContent(ctx, simplecontent.WithParentID(content.ID))
	if err != nil {
		s.log.Error("failed to list derived content", "error", err)
		http.Error(w, fmt.Sprintf("List derived failed: %v", err), http.StatusInternalServerError)
		return
	}
	for _, d := range derived {
		s.log.Info("derived content", "type", d.DerivationType, "variant", d.Variant, "status", d.Status)
	}

	status := "success"
	if !result.Success {
		status = "failed"
	}
	var study json.RawMessage
	if body, ok := result.Outputs["result_json"].(string); ok && body != "" {
		study = json.RawMessage(body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"test_status":      status,
		"content_id":       content.ID.String(),
		"run_id":           runID,
		"message":          result.Message,
		"derived_count":    len(derived),
		"derived_contents": derived,
		"study_result":     study,
	})
}
