// Package bootstrap assembles the study pipeline from configuration. Both
// server binaries and the CLI build their engine here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tendant/simple-study-pipeline/internal/cache"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/engine"
	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/ocr"
	"github.com/tendant/simple-study-pipeline/internal/ocr/gcpvision"
	"github.com/tendant/simple-study-pipeline/internal/ocr/tesseract"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Components are the assembled pipeline parts. Close releases every client.
type Components struct {
	Engine  *engine.Engine
	Chain   *ocr.Chain
	Objects storage.ObjectStore
	Results *cache.Results

	closers []io.Closer
}

// Close releases backend, storage and cache clients
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates the engine, its extraction chain, the upload store and the
// result cache
func Build(ctx context.Context, cfg config.Config, log *logger.Logger, m *metrics.Recorder) (*Components, error) {
	if log == nil {
		log = logger.Nop()
	}
	c := &Components{}

	gen, err := llm.NewClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	chain, closers, err := NewChain(ctx, cfg.OCR, gen, log, m)
	if err != nil {
		return nil, err
	}
	c.Chain = chain
	c.closers = append(c.closers, closers...)

	c.Engine, err = engine.New(cfg.Pipeline, engine.Deps{
		Generator: gen,
		Chain:     chain,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	objects, err := NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Objects = objects
	if closer, ok := objects.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	results, store, err := NewResultCache(ctx, cfg.Cache, log, m)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Results = results
	if store != nil {
		c.closers = append(c.closers, store)
	}

	return c, nil
}

// NewChain registers the configured extraction backends. Tesseract serves
// handwriting, and general OCR as well when Cloud Vision is off. The vision
// model backs diagrams and is the last resort for everything else.
func NewChain(ctx context.Context, cfg config.OCR, gen llm.Generator, log *logger.Logger, m *metrics.Recorder) (*ocr.Chain, []io.Closer, error) {
	order := make([]study.Tool, 0, len(cfg.FallbackOrder))
	for _, name := range cfg.FallbackOrder {
		order = append(order, study.Tool(name))
	}
	chain := ocr.NewChain(ocr.WithLogger(log), ocr.WithMetrics(m), ocr.WithOrder(order))

	var closers []io.Closer
	if cfg.GoogleVisionEnabled {
		backend, err := gcpvision.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("google vision backend: %w", err)
		}
		chain.Register(study.ToolGeneralOCR, backend)
		closers = append(closers, backend)
		log.Info("registered extraction backend", "tool", study.ToolGeneralOCR, "backend", backend.Name())
	}
	if cfg.TesseractEnabled {
		backend := tesseract.New(cfg.TesseractLanguages...)
		chain.Register(study.ToolHandwritingOCR, backend)
		log.Info("registered extraction backend", "tool", study.ToolHandwritingOCR, "backend", backend.Name())
		if !chain.Has(study.ToolGeneralOCR) {
			chain.Register(study.ToolGeneralOCR, backend)
			log.Info("registered extraction backend", "tool", study.ToolGeneralOCR, "backend", backend.Name())
		}
	}
	if gen != nil {
		chain.Register(study.ToolVisionLLM, ocr.NewVisionLLM(gen))
	}
	return chain, closers, nil
}

// NewObjectStore returns a GCS store when a bucket is configured, otherwise
// a filesystem store under cfg.Dir
func NewObjectStore(ctx context.Context, cfg config.Storage) (storage.ObjectStore, error) {
	if cfg.GCSBucket != "" {
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("gcs store: %w", err)
		}
		return s, nil
	}
	s, err := storage.NewFilesystemStorage(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("filesystem store: %w", err)
	}
	return s, nil
}

// NewResultCache returns a Redis-backed cache when an address is configured,
// an in-process one otherwise, and nil when the TTL disables caching
func NewResultCache(ctx context.Context, cfg config.Cache, log *logger.Logger, m *metrics.Recorder) (*cache.Results, cache.Store, error) {
	if cfg.TTL <= 0 {
		return nil, nil, nil
	}
	var store cache.Store
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		store = rs
	} else {
		store = cache.NewMemoryStore()
	}
	return cache.NewResults(store, cfg.TTL, log, m), store, nil
}
