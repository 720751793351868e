// Package runner embeds the study pipeline in another application. A Runner
// registers the study workflow and executes queued runs; a Client only
// enqueues them for separate workers.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-study-pipeline/internal/bootstrap"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// Config holds the configuration for initializing the pipeline runner.
// Engine settings (LLM, OCR, storage, cache) are read from the environment.
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Number of concurrent workers
	ContentAPIURL      string // URL of the content API server
	ApplicationVersion string // Optional: Override binary hash for version matching
}

// Runner provides a high-level API for running pipeline workflows via DBOS
type Runner struct {
	runtime    *dbosruntime.Runtime
	runner     *workflows.WorkflowRunner
	components *bootstrap.Components
}

// New creates and initializes a new pipeline runner with DBOS integration
func New(cfg Config) (*Runner, error) {
	ctx := context.Background()
	pcfg := config.Load()

	components, err := bootstrap.Build(ctx, pcfg, nil, metrics.New())
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	// Create DBOS runtime
	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// Create workflow runner
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, nil)

	// Setup storage adapters
	contentReader := storage.NewHTTPContentReader(cfg.ContentAPIURL)
	derivedWriter := storage.NewHTTPDerivedWriter(cfg.ContentAPIURL)

	workflowRunner.Register(pipeline.JobStudy, workflows.NewStudyWorkflow(contentReader, derivedWriter, components.Engine,
		workflows.WithObjectStore(components.Objects),
		workflows.WithResultCache(components.Results),
		workflows.WithTimeout(pcfg.ProcessTimeout),
		workflows.WithMaxImageSize(pcfg.Pipeline.MaxImageSize),
	))

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime:    dbosRuntime,
		runner:     workflowRunner,
		components: components,
	}, nil
}

// RunStudy enqueues the study job for an existing content item
func (r *Runner) RunStudy(ctx context.Context, contentID string, opts *pipeline.StudyOptions) (string, error) {
	return r.runner.RunAsync(ctx, studyRequest(contentID, opts))
}

// Status returns the state of a queued run
func (r *Runner) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the pipeline runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
	if r.components != nil {
		r.components.Close()
	}
}

func studyRequest(contentID string, opts *pipeline.StudyOptions) pipeline.ProcessRequest {
	return pipeline.ProcessRequest{
		ContentID: contentID,
		Job:       pipeline.JobStudy,
		Versions: map[string]int{
			pipeline.DerivedTypeStudyResult: 1,
		},
		Options: opts,
	}
}
