// Package chunkproc runs per-chunk generation tasks in bounded, paced batches.
package chunkproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-study-pipeline/internal/chunking"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Task processes one chunk. state is a private copy seeded for the chunk.
type Task interface {
	Run(ctx context.Context, state study.State, chunk chunking.DocumentChunk) (study.ChunkResult, error)
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context, state study.State, chunk chunking.DocumentChunk) (study.ChunkResult, error)

func (f TaskFunc) Run(ctx context.Context, state study.State, chunk chunking.DocumentChunk) (study.ChunkResult, error) {
	return f(ctx, state, chunk)
}

// ProgressFunc is called after each chunk completes. Calls are serialized.
type ProgressFunc func(completed, total int)

// Options configures a Processor
type Options struct {
	// MaxConcurrency is the batch size and in-flight bound (1-5)
	MaxConcurrency int
	// BatchDelay is the pause between batches
	BatchDelay time.Duration
	Logger     *logger.Logger
	Metrics    *metrics.Recorder
}

// Processor fans chunks out to a Task
type Processor struct {
	task        Task
	concurrency int
	batchDelay  time.Duration
	log         *logger.Logger
	metrics     *metrics.Recorder
}

// New creates a processor
func New(task Task, opts Options) *Processor {
	n := opts.MaxConcurrency
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		task:        task,
		concurrency: n,
		batchDelay:  opts.BatchDelay,
		log:         log,
		metrics:     opts.Metrics,
	}
}

// Process runs every chunk and returns one result per chunk in chunk order.
// Task errors and panics become error results; they never stop other chunks.
func (p *Processor) Process(ctx context.Context, chunks []chunking.DocumentChunk, parent study.State, progress ProgressFunc) []study.ChunkResult {
	total := len(chunks)
	results := make([]study.ChunkResult, total)

	var (
		mu        sync.Mutex
		completed int
	)
	done := func(i int, r study.ChunkResult) {
		results[i] = r
		p.metrics.ChunkResult(!r.Failed())
		mu.Lock()
		defer mu.Unlock()
		completed++
		if progress != nil {
			progress(completed, total)
		}
	}

	for batchStart := 0; batchStart < total; batchStart += p.concurrency {
		batchEnd := batchStart + p.concurrency
		if batchEnd > total {
			batchEnd = total
		}

		if err := ctx.Err(); err != nil {
			for i := batchStart; i < total; i++ {
				done(i, errorResult(chunks[i], err))
			}
			break
		}

		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i := batchStart; i < batchEnd; i++ {
			i := i
			g.Go(func() error {
				done(i, p.runOne(ctx, parent, chunks[i]))
				return nil
			})
		}
		_ = g.Wait()

		if batchEnd < total && p.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.batchDelay):
			}
		}
	}
	return results
}

func (p *Processor) runOne(ctx context.Context, parent study.State, chunk chunking.DocumentChunk) (res study.ChunkResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("chunk task panicked", "run_id", parent.RunID, "chunk_id", chunk.ID, "panic", r)
			res = errorResult(chunk, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := p.task.Run(ctx, parent.ForChunk(chunk.Content), chunk)
	if err != nil {
		p.log.Error("chunk task failed", "run_id", parent.RunID, "chunk_id", chunk.ID, "error", err)
		return errorResult(chunk, err)
	}
	stampChunk(&out, chunk)
	return out
}

func errorResult(chunk chunking.DocumentChunk, err error) study.ChunkResult {
	r := study.ChunkResult{Error: err.Error()}
	stampChunk(&r, chunk)
	return r
}

// stampChunk copies identity, flags and size metrics from the chunk
func stampChunk(r *study.ChunkResult, chunk chunking.DocumentChunk) {
	r.ChunkID = chunk.ID
	r.Index = chunk.Index
	r.HasMath = chunk.HasMath
	r.HasChemical = chunk.HasChemical
	r.HasSuperSub = chunk.HasSuperSub
	r.WordCount = chunk.WordCount
	r.CharacterCount = chunk.CharCount
}
