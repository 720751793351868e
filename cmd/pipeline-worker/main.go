package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-study-pipeline/internal/bootstrap"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-study-pipeline/internal/dedupe"
	"github.com/tendant/simple-study-pipeline/internal/handlers"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	lg = lg.WithHashSalt(cfg.LogHashSalt)
	defer lg.Sync()

	ctx := context.Background()
	rec := metrics.New()

	components, err := bootstrap.Build(ctx, cfg, lg, rec)
	if err != nil {
		lg.Fatal("failed to build pipeline", "error", err)
	}
	defer components.Close()

	// Use HTTP API if CONTENT_API_URL is set, otherwise use embedded service
	var contentReader workflows.ContentReader
	var derivedWriter workflows.DerivedWriter
	cleanup := func() {}

	if cfg.ContentAPIURL != "" {
		lg.Info("using simple-content HTTP API", "url", cfg.ContentAPIURL)
		contentReader = storage.NewHTTPContentReader(cfg.ContentAPIURL)
		derivedWriter = storage.NewHTTPDerivedWriter(cfg.ContentAPIURL)
	} else {
		lg.Info("using embedded simple-content service (development preset)")
		svc, cleanupFn, err := presets.NewDevelopment(presets.WithDevStorage(cfg.Storage.Dir))
		if err != nil {
			lg.Fatal("failed to initialize simple-content service", "error", err)
		}
		contentReader = storage.NewContentReader(svc)
		derivedWriter = storage.NewDerivedWriter(svc)
		cleanup = cleanupFn
	}
	defer cleanup()

	// Initialize DBOS runtime (required)
	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            "pipeline-worker",
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.WorkerConcurrency,
		ApplicationVersion: cfg.AppVersion,
	})
	if err != nil {
		lg.Fatal("failed to initialize DBOS", "error", err)
	}

	ledger, err := dedupe.NewTracker(ctx, dbosRuntime.DB(), lg)
	if err != nil {
		lg.Fatal("failed to initialize dedupe ledger", "error", err)
	}

	// Registers the DBOS workflow function, so it must precede Launch
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, lg)
	studyWorkflow := workflows.NewStudyWorkflow(contentReader, derivedWriter, components.Engine,
		workflows.WithObjectStore(components.Objects),
		workflows.WithResultCache(components.Results),
		workflows.WithLogger(lg),
		workflows.WithTimeout(cfg.ProcessTimeout),
		workflows.WithMaxImageSize(cfg.Pipeline.MaxImageSize),
	)
	workflowRunner.Register(pipeline.JobStudy, studyWorkflow)

	if err := dbosRuntime.Launch(); err != nil {
		lg.Fatal("failed to launch DBOS", "error", err)
	}
	defer dbosRuntime.Shutdown(10 * time.Second)

	lg.Info("DBOS runtime initialized",
		"queue", dbosRuntime.QueueName(),
		"concurrency", dbosRuntime.Concurrency(),
	)

	router := handlers.NewRouter(handlers.Routes{
		Mode:     "worker",
		Async:    handlers.NewAsyncHandler(workflowRunner, ledger, lg),
		Study:    handlers.NewStudyHandler(workflowRunner, components.Objects, cfg.Pipeline.MaxImageSize, cfg.KeepUploads, lg),
		Estimate: handlers.NewEstimateHandler(cfg.Pipeline.ChunkSize, cfg.Pipeline.MaxConcurrency),
		Metrics:  rec.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		lg.Info("pipeline worker starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", "error", err)
		}
	}()

	waitForShutdown(lg, server)
}

// waitForShutdown blocks until SIGINT or SIGTERM and drains the server
func waitForShutdown(lg *logger.Logger, server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
		return
	}

	lg.Info("server stopped")
}
