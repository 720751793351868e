package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

type stubBackend struct {
	name  string
	res   Result
	err   error
	panic bool
	calls int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Extract(context.Context, []byte) (Result, error) {
	s.calls++
	if s.panic {
		panic("engine crashed")
	}
	return s.res, s.err
}

func TestPlan_PreferredFirstWithoutDuplicates(t *testing.T) {
	c := NewChain()
	assert.Equal(t, []study.Tool{study.ToolGeneralOCR, study.ToolHandwritingOCR, study.ToolVisionLLM}, c.Plan(study.ToolGeneralOCR))
	assert.Equal(t, DefaultOrder, c.Plan(study.ToolNone))
}

func TestExtract_FallsBackOnError(t *testing.T) {
	primary := &stubBackend{name: "tesseract", err: errors.New("boom")}
	secondary := &stubBackend{name: "google_vision", res: Result{Text: "x = 2", Confidence: 0.9}}
	c := NewChain(WithMetrics(metrics.New()))
	c.Register(study.ToolHandwritingOCR, primary)
	c.Register(study.ToolGeneralOCR, secondary)

	got, err := c.Extract(context.Background(), []byte("img"), study.ToolHandwritingOCR)
	require.NoError(t, err)
	assert.Equal(t, "x = 2", got.Text)
	assert.Equal(t, study.ToolGeneralOCR, got.Tool)
	assert.Equal(t, "google_vision", got.Backend)
	require.Len(t, got.Attempts, 2)
	assert.Equal(t, "boom", got.Attempts[0].Error)
	assert.Empty(t, got.Attempts[1].Error)
}

func TestExtract_SkipsBlankAndPanickingBackends(t *testing.T) {
	blank := &stubBackend{name: "a", res: Result{Text: "  \n "}}
	crashing := &stubBackend{name: "b", panic: true}
	llm := &stubBackend{name: "vision_llm", res: Result{Text: "diagram of a cell", Confidence: 0.8}}
	c := NewChain()
	c.Register(study.ToolGeneralOCR, blank)
	c.Register(study.ToolHandwritingOCR, crashing)
	c.Register(study.ToolVisionLLM, llm)

	got, err := c.Extract(context.Background(), []byte("img"), study.ToolGeneralOCR)
	require.NoError(t, err)
	assert.Equal(t, study.ToolVisionLLM, got.Tool)
	assert.Equal(t, 0.8, got.Confidence)
	require.Len(t, got.Attempts, 3)
	assert.Equal(t, "empty result", got.Attempts[0].Error)
	assert.Contains(t, got.Attempts[1].Error, "panic")
}

func TestExtract_UnconfiguredBackendsAreSkipped(t *testing.T) {
	only := &stubBackend{name: "vision_llm", res: Result{Text: "text"}}
	c := NewChain()
	c.Register(study.ToolVisionLLM, only)

	got, err := c.Extract(context.Background(), []byte("img"), study.ToolHandwritingOCR)
	require.NoError(t, err)
	assert.Equal(t, study.ToolVisionLLM, got.Tool)
	assert.Len(t, got.Attempts, 1)
}

func TestExtract_SameEngineTriedOnce(t *testing.T) {
	tess := &stubBackend{name: "tesseract", err: errors.New("no")}
	c := NewChain()
	c.Register(study.ToolHandwritingOCR, tess)
	c.Register(study.ToolGeneralOCR, tess)

	got, err := c.Extract(context.Background(), []byte("img"), study.ToolGeneralOCR)
	assert.ErrorIs(t, err, ErrNoText)
	assert.Equal(t, 1, tess.calls)
	assert.Equal(t, study.ToolNone, got.Tool)
	assert.Len(t, got.Attempts, 1)
}

func TestExtract_EmptyImageAndCancelledContext(t *testing.T) {
	c := NewChain()
	c.Register(study.ToolGeneralOCR, &stubBackend{name: "x", res: Result{Text: "t"}})

	_, err := c.Extract(context.Background(), nil, study.ToolGeneralOCR)
	assert.ErrorIs(t, err, ErrEmptyImage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Extract(ctx, []byte("img"), study.ToolGeneralOCR)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreview_SkipsVisionModelAndTruncates(t *testing.T) {
	llm := &stubBackend{name: "vision_llm", res: Result{Text: "from model"}}
	tess := &stubBackend{name: "tesseract", res: Result{Text: "abcdefghij"}}
	c := NewChain()
	c.Register(study.ToolVisionLLM, llm)
	c.Register(study.ToolHandwritingOCR, tess)

	assert.Equal(t, "abcd", c.Preview(context.Background(), []byte("img"), 4))
	assert.Equal(t, 0, llm.calls)

	c.Register(study.ToolHandwritingOCR, nil)
	assert.Equal(t, "", c.Preview(context.Background(), []byte("img"), 4))
}

func TestVisionLLMBackend(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, prompt string, image []byte) (string, error) {
		assert.Contains(t, prompt, "Extract all text")
		return "F = ma", nil
	})
	res, err := NewVisionLLM(gen).Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "F = ma", Confidence: 0.8}, res)
}

type generatorFunc func(ctx context.Context, prompt string, image []byte) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, image []byte) (string, error) {
	return f(ctx, prompt, image)
}
