// Package engine runs the image study pipeline as a static graph of stages.
//
// Each stage receives a copy of the run state and returns the next state.
// A stage that fails or panics is replaced by its recover function, which
// derives a degraded state from the stage input, so every run reaches the
// finalize stage.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-study-pipeline/internal/chunkproc"
	"github.com/tendant/simple-study-pipeline/internal/classify"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/generate"
	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/ocr"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Deps are the collaborators of an Engine. Generator and Chain are required.
type Deps struct {
	Generator llm.Generator
	Chain     *ocr.Chain
	Logger    *logger.Logger
	Metrics   *metrics.Recorder

	// ChunkTask replaces the default per-chunk study task
	ChunkTask chunkproc.Task
	// Now replaces time.Now for run timestamps
	Now func() time.Time
}

// Options are per-run settings. Start from Engine.DefaultOptions.
type Options struct {
	GenerateSummary     bool
	GenerateExplanation bool
	GenerateQuiz        bool
	QuizCount           int

	EnableChunking    bool
	ChunkSize         int
	MaxConcurrency    int
	PreserveEquations bool

	// NormalizeMath cleans common OCR mistakes in math before generation
	NormalizeMath bool
}

// Request is one image to process
type Request struct {
	RunID    string
	ImageRef string
	UserID   string
	Image    []byte
	Options  Options
}

// Engine owns the stage graph and its collaborators. It is safe for
// concurrent use; each Process call works on its own state.
type Engine struct {
	cfg       config.Pipeline
	quality   *classify.Quality
	content   *classify.Content
	chain     *ocr.Chain
	writer    *generate.Writer
	chunkTask chunkproc.Task
	log       *logger.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
	graph     map[string]node
}

// New creates an engine. cfg is normalized with WithDefaults.
func New(cfg config.Pipeline, deps Deps) (*Engine, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("engine: %w", ErrNoGenerator)
	}
	if deps.Chain == nil {
		return nil, fmt.Errorf("engine: %w", ErrNoChain)
	}
	cfg.WithDefaults()

	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	writer := generate.NewWriter(deps.Generator)
	task := deps.ChunkTask
	if task == nil {
		task = chunkproc.NewStudyTask(writer, cfg.MaxChunkQuiz)
	}

	e := &Engine{
		cfg:       cfg,
		quality:   classify.NewQuality(deps.Generator),
		content:   classify.NewContent(deps.Generator),
		chain:     deps.Chain,
		writer:    writer,
		chunkTask: task,
		log:       log,
		metrics:   deps.Metrics,
		now:       now,
	}
	e.graph = e.buildGraph()
	return e, nil
}

// Config returns the normalized pipeline configuration
func (e *Engine) Config() config.Pipeline {
	return e.cfg
}

// DefaultOptions returns options with every artifact enabled and the
// configured chunking settings.
func (e *Engine) DefaultOptions() Options {
	return Options{
		GenerateSummary:     true,
		GenerateExplanation: true,
		GenerateQuiz:        true,
		QuizCount:           e.cfg.DefaultQuizQuestions,
		EnableChunking:      e.cfg.EnableChunking,
		ChunkSize:           e.cfg.ChunkSize,
		MaxConcurrency:      e.cfg.MaxConcurrency,
		PreserveEquations:   e.cfg.PreserveEquations,
		NormalizeMath:       true,
	}
}

func (e *Engine) normalize(o Options) Options {
	if o.QuizCount <= 0 {
		o.QuizCount = e.cfg.DefaultQuizQuestions
	}
	if o.QuizCount > e.cfg.MaxQuizQuestions {
		o.QuizCount = e.cfg.MaxQuizQuestions
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = e.cfg.ChunkSize
	}
	o.ChunkSize = clamp(o.ChunkSize, 1000, 8000)
	if o.MaxConcurrency == 0 {
		o.MaxConcurrency = e.cfg.MaxConcurrency
	}
	o.MaxConcurrency = clamp(o.MaxConcurrency, 1, 5)
	return o
}

// run carries per-call settings through the stages
type run struct {
	opts    Options
	log     *logger.Logger
	retries *atomic.Int64
}

// Process runs the graph for one image. It never returns an error and never
// panics: failures are reported on the returned state.
func (e *Engine) Process(ctx context.Context, req Request) (out study.State) {
	r := &run{
		opts:    e.normalize(req.Options),
		log:     e.log.With("run_id", req.RunID, "user_id", req.UserID),
		retries: new(atomic.Int64),
	}
	ctx = llm.WithRetryCounter(ctx, r.retries)
	s := study.NewState(req.RunID, req.ImageRef, req.UserID, req.Image, e.now())

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("workflow panicked", "panic", p)
			out = s.Stop(fmt.Sprintf("Workflow failed: %v", p))
			out.FinishedAt = e.now()
			e.metrics.Run(false)
		}
	}()

	r.log.Info("processing started", "image", req.ImageRef, "bytes", len(req.Image))

	current := StageValidate
	for steps := 0; current != StageEnd; steps++ {
		if steps > len(e.graph) {
			// the table is acyclic; this only trips on a broken edge
			s = s.Stop("Workflow failed: stage limit exceeded")
			current = StageFinalize
		}
		if current != StageFinalize {
			if err := ctx.Err(); err != nil {
				r.log.Warn("processing cancelled", "stage", current, "error", err)
				s = s.Stop("Processing cancelled: " + err.Error())
				current = StageFinalize
			}
		}

		n, ok := e.graph[current]
		if !ok {
			s = s.Stop("Workflow failed: unknown stage " + current)
			current = StageFinalize
			n = e.graph[current]
		}
		s = e.step(ctx, r, current, n, s)
		current = n.next(r, s)
	}
	return s
}

// Result converts a finished state into the caller-facing result
func (e *Engine) Result(s study.State, opts Options) study.ProcessingResult {
	opts = e.normalize(opts)
	return study.BuildResult(s, study.ResultOptions{
		IncludeSummary:     opts.GenerateSummary,
		IncludeExplanation: opts.GenerateExplanation,
		IncludeQuiz:        opts.GenerateQuiz,
		QuizCount:          opts.QuizCount,
		MinTextLength:      e.cfg.MinTextLength,
		QualityThreshold:   e.cfg.QualityThreshold,
	})
}

// Run processes req and builds its result
func (e *Engine) Run(ctx context.Context, req Request) study.ProcessingResult {
	return e.Result(e.Process(ctx, req), req.Options)
}

// step runs one stage on a copy of in. Errors and panics are handed to the
// stage's recover function together with the untouched input.
func (e *Engine) step(ctx context.Context, r *run, name string, n node, in study.State) (out study.State) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("stage panicked", "stage", name, "panic", p)
			out = n.recover(r, in, fmt.Errorf("panic: %v", p))
		}
		e.metrics.ObserveStage(name, time.Since(start))
	}()

	next, err := n.run(ctx, r, in.Clone())
	if err != nil {
		r.log.Warn("stage failed", "stage", name, "error", err)
		return n.recover(r, in, err)
	}
	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
