package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()
	assert.Equal(t, 0.6, p.QualityThreshold)
	assert.Equal(t, 10, p.MinTextLength)
	assert.Equal(t, 5, p.DefaultQuizQuestions)
	assert.Equal(t, 20, p.MaxQuizQuestions)
	assert.Equal(t, 4000, p.ChunkSize)
	assert.Equal(t, 200, p.ChunkOverlap)
	assert.Equal(t, 3, p.MaxConcurrency)
	assert.True(t, p.PreserveEquations)
	assert.Equal(t, time.Second, p.BatchDelay)
	assert.Equal(t, 15, p.MaxMergedQuiz)
}

func TestPipelineWithDefaults_ClampsRanges(t *testing.T) {
	p := Pipeline{ChunkSize: 50000, MaxConcurrency: 12, ChunkOverlap: -3}
	p.WithDefaults()
	assert.Equal(t, 8000, p.ChunkSize)
	assert.Equal(t, 5, p.MaxConcurrency)
	assert.Equal(t, 0, p.ChunkOverlap)

	p = Pipeline{ChunkSize: 10, MaxConcurrency: -1}
	p.WithDefaults()
	assert.Equal(t, 1000, p.ChunkSize)
	assert.Equal(t, 1, p.MaxConcurrency)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("QUALITY_THRESHOLD", "0.75")
	t.Setenv("CHUNK_SIZE", "2000")
	t.Setenv("MAX_CONCURRENCY", "9")
	t.Setenv("PRESERVE_EQUATIONS", "false")
	t.Setenv("CHUNK_BATCH_DELAY", "250ms")
	t.Setenv("OCR_FALLBACK_ORDER", "general_ocr, vision_llm")
	t.Setenv("MIN_TEXT_LENGTH", "not-a-number")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("KEEP_UPLOADS", "true")

	cfg := Load()
	assert.Equal(t, 0.75, cfg.Pipeline.QualityThreshold)
	assert.Equal(t, 2000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 5, cfg.Pipeline.MaxConcurrency)
	assert.False(t, cfg.Pipeline.PreserveEquations)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BatchDelay)
	assert.Equal(t, []string{"general_ocr", "vision_llm"}, cfg.OCR.FallbackOrder)
	assert.Equal(t, 10, cfg.Pipeline.MinTextLength)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.True(t, cfg.KeepUploads)
	assert.Equal(t, ":8080", cfg.StandaloneAddr)
}
