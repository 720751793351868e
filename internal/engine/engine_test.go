package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/generate"
	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/ocr"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// fakeModel answers each prompt family with a canned response
type fakeModel struct {
	mu      sync.Mutex
	quality string
	content string
	quizErr error
	panicOn string
	retryOn string
	calls   []string
}

func (m *fakeModel) Generate(ctx context.Context, prompt string, _ []byte) (string, error) {
	kind := promptKind(prompt)
	if kind == m.retryOn {
		llm.RecordRetry(ctx)
	}
	m.mu.Lock()
	m.calls = append(m.calls, kind)
	m.mu.Unlock()

	if kind == m.panicOn {
		panic(kind + " exploded")
	}
	switch kind {
	case "quality":
		return m.quality, nil
	case "content":
		return m.content, nil
	case "summary":
		return `{"summary_text": "Cells make energy."}`, nil
	case "explanation":
		return `{"detailed_explanation": "Mitochondria run respiration."}`, nil
	case "quiz":
		if m.quizErr != nil {
			return "", m.quizErr
		}
		return `{"questions": [{"question": "Where is ATP made?", "correct_answer": "Mitochondria"}]}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (m *fakeModel) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == kind {
			n++
		}
	}
	return n
}

func promptKind(p string) string {
	switch {
	case strings.Contains(p, "image quality assessor"):
		return "quality"
	case strings.Contains(p, "content type classifier"):
		return "content"
	case strings.Contains(p, "content summarizer"):
		return "summary"
	case strings.Contains(p, "educational tutor"):
		return "explanation"
	case strings.Contains(p, "assessment creator"):
		return "quiz"
	}
	return "other"
}

type fakeBackend struct {
	name  string
	text  string
	err   error
	mu    sync.Mutex
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Extract(context.Context, []byte) (ocr.Result, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return ocr.Result{Text: b.text, Confidence: 0.92}, b.err
}

const goodQuality = `{"score": 0.9, "classification": "HIGH", "issues": []}`
const printed = `{"content_type": "PRINTED_TEXT", "confidence": 0.9}`

const cellText = "Mitochondria are organelles that produce most of the chemical energy in cells."

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetNRGBA(3, 3, color.NRGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newEngine(t *testing.T, model *fakeModel, chain *ocr.Chain, mutate func(*config.Pipeline)) *Engine {
	t.Helper()
	cfg := config.DefaultPipeline()
	cfg.BatchDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg, Deps{
		Generator: model,
		Chain:     chain,
		Metrics:   metrics.New(),
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return e
}

func chainWith(tool study.Tool, b ocr.Backend) *ocr.Chain {
	c := ocr.NewChain()
	c.Register(tool, b)
	return c
}

func request(t *testing.T, e *Engine) Request {
	return Request{RunID: "run-1", ImageRef: "page.png", UserID: "u-1", Image: testImage(t), Options: e.DefaultOptions()}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(config.DefaultPipeline(), Deps{Chain: ocr.NewChain()})
	assert.ErrorIs(t, err, ErrNoGenerator)
	_, err = New(config.DefaultPipeline(), Deps{Generator: &fakeModel{}})
	assert.ErrorIs(t, err, ErrNoChain)
}

func TestProcess_HappyPath(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.True(t, s.ShouldProceed)
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, study.QualityHigh, s.QualityClassification)
	assert.Equal(t, study.ContentPrinted, s.ContentType)
	assert.Equal(t, cellText, s.ExtractedText)
	assert.Equal(t, study.ToolGeneralOCR, s.ToolUsed)
	assert.Equal(t, "Cells make energy.", s.Summary)
	assert.Equal(t, "Mitochondria run respiration.", s.Explanation)
	require.Len(t, s.QuizQuestions, 1)
	assert.False(t, s.Chunked)
	assert.False(t, s.Degraded)
	assert.Zero(t, s.RetryCount)
	assert.False(t, s.FinishedAt.IsZero())

	res := e.Result(s, e.DefaultOptions())
	assert.True(t, res.Success)
	assert.False(t, res.Degraded)
	require.NotNil(t, res.Summary)
	require.NotNil(t, res.Quiz)
	assert.Equal(t, 1, res.Quiz.TotalQuestions)
}

func TestProcess_VeryLowQualityStopsBeforeExtraction(t *testing.T) {
	model := &fakeModel{quality: `{"score": 0.1, "classification": "LOW", "issues": ["blur"]}`, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.False(t, s.ShouldProceed)
	assert.Contains(t, s.ErrorMessage, "too low")
	assert.Empty(t, s.ExtractedText)
	assert.Empty(t, s.Summary)
	assert.Equal(t, 0, model.count("summary"))
	assert.Equal(t, 0, model.count("explanation"))
	assert.Equal(t, 0, model.count("quiz"))
	assert.False(t, e.Result(s, e.DefaultOptions()).Success)
}

func TestProcess_EmptyTextYieldsInsufficientSummary(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: ""}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.Equal(t, generate.InsufficientSummary, s.Summary)
	assert.NotNil(t, s.QuizQuestions)
	assert.Empty(t, s.QuizQuestions)
	assert.Equal(t, study.ToolNone, s.ToolUsed)
	assert.Contains(t, s.Warnings, MsgInsufficientText)
	assert.Equal(t, 0, model.count("summary"))
}

func TestProcess_LongTextIsChunkedAndMerged(t *testing.T) {
	seg := "$x^2$ " + strings.Repeat("lorem ipsum ", 250)
	text := strings.Repeat(seg, 3)[:9000]
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: text}), nil)

	opts := e.DefaultOptions()
	opts.ChunkSize = 4000
	req := request(t, e)
	req.Options = opts
	s := e.Process(context.Background(), req)

	require.True(t, s.Chunked)
	require.NotNil(t, s.ChunkStats)
	assert.Equal(t, 3, s.ChunkStats.TotalChunks)
	assert.Equal(t, 3, s.ChunkStats.SuccessfulChunks)
	assert.GreaterOrEqual(t, s.ChunkStats.MathChunks, 1)
	assert.True(t, strings.HasPrefix(s.Summary, "## Document Summary"))
	assert.True(t, strings.HasPrefix(s.Explanation, "## Detailed Explanation"))
	// identical questions from every chunk collapse to one
	assert.Len(t, s.QuizQuestions, 1)
	assert.Equal(t, 3, model.count("summary"))
}

func TestProcess_ChunkingDisabledUsesSinglePass(t *testing.T) {
	text := strings.Repeat("Cells need energy to divide. ", 200)
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: text}), nil)

	req := request(t, e)
	req.Options.EnableChunking = false
	s := e.Process(context.Background(), req)

	assert.False(t, s.Chunked)
	assert.Equal(t, 1, model.count("summary"))
}

func TestProcess_FailedExtractionFinalizesWithoutStopping(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", err: errors.New("vision offline")}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.True(t, s.ShouldProceed)
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, study.ToolNone, s.ToolUsed)
	assert.Contains(t, s.Warnings, MsgInsufficientText)
	assert.Equal(t, generate.InsufficientSummary, s.Summary)
	assert.Equal(t, 0, model.count("summary"))
	assert.False(t, e.Result(s, e.DefaultOptions()).Success)
}

func TestProcess_FallsBackToSecondaryBackend(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: `{"content_type": "HANDWRITTEN_TEXT", "confidence": 0.8}`}
	chain := ocr.NewChain()
	chain.Register(study.ToolHandwritingOCR, &fakeBackend{name: "tesseract", err: errors.New("tesseract crashed")})
	chain.Register(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText})
	e := newEngine(t, model, chain, nil)

	s := e.Process(context.Background(), request(t, e))

	assert.Equal(t, study.ContentHandwritten, s.ContentType)
	assert.Equal(t, study.ToolGeneralOCR, s.ToolUsed)
	assert.Equal(t, "google_vision", s.BackendUsed)
	assert.Equal(t, cellText, s.ExtractedText)
}

func TestProcess_QuizFailureUsesFallbackQuestions(t *testing.T) {
	text := "Photosynthesis converts light energy into chemical energy. " +
		"The chloroplast contains pigments that absorb sunlight. " +
		"Carbon dioxide enters the leaf through small pores. " +
		"Water is split to release oxygen into the air. " +
		"Glucose produced is stored as starch in plants"
	model := &fakeModel{quality: goodQuality, content: printed, quizErr: errors.New("quota exceeded")}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: text}), nil)

	s := e.Process(context.Background(), request(t, e))

	require.Len(t, s.QuizQuestions, 5)
	for _, q := range s.QuizQuestions {
		assert.Equal(t, study.QuestionFillInBlank, q.QuestionType)
	}
	assert.Equal(t, generate.FallbackQuiz(text), s.QuizQuestions)
	assert.True(t, s.Degraded)
}

func TestProcess_StagePanicFallsBackToErrorSummary(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed, panicOn: "summary"}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.True(t, strings.HasPrefix(s.Summary, "Summary generation failed: panic: summary exploded"))
	assert.Equal(t, "Mitochondria run respiration.", s.Explanation)
	assert.True(t, s.ShouldProceed)
}

func TestProcess_ClassifierPanicUsesDefaults(t *testing.T) {
	model := &fakeModel{quality: goodQuality, panicOn: "content"}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.Equal(t, study.ContentMixed, s.ContentType)
	assert.Equal(t, 0.5, s.ContentConfidence)
	assert.Equal(t, cellText, s.ExtractedText)
	assert.True(t, s.Degraded)
}

func TestProcess_FallbackResultIsDegraded(t *testing.T) {
	for _, kind := range []string{"quality", "summary", "explanation", "quiz"} {
		t.Run(kind, func(t *testing.T) {
			model := &fakeModel{quality: goodQuality, content: printed, panicOn: kind}
			e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

			s := e.Process(context.Background(), request(t, e))
			require.True(t, s.ShouldProceed)
			assert.True(t, s.Degraded)

			res := e.Result(s, e.DefaultOptions())
			assert.True(t, res.Success)
			assert.True(t, res.Degraded)
		})
	}
}

func TestProcess_RecordsRetries(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed, retryOn: "summary"}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	s := e.Process(context.Background(), request(t, e))

	assert.Equal(t, 1, s.RetryCount)
	assert.Equal(t, 1, e.Result(s, e.DefaultOptions()).RetryCount)
}

func TestProcess_InvalidImageStops(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	req := request(t, e)
	req.Image = []byte("definitely not an image")
	s := e.Process(context.Background(), req)

	assert.False(t, s.ShouldProceed)
	assert.Contains(t, s.ErrorMessage, "Image validation failed")
	assert.Equal(t, 0, model.count("quality"))
}

func TestProcess_OversizedImageStops(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), func(p *config.Pipeline) {
		p.MaxImageSize = 10
	})

	s := e.Process(context.Background(), request(t, e))
	assert.Equal(t, MsgImageTooLarge, s.ErrorMessage)
}

func TestProcess_CancelledContextFinalizes(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := e.Process(ctx, request(t, e))

	assert.False(t, s.ShouldProceed)
	assert.Contains(t, s.ErrorMessage, "Processing cancelled")
	assert.False(t, s.FinishedAt.IsZero())
	assert.Empty(t, model.calls)
}

func TestProcess_TogglesSkipStages(t *testing.T) {
	model := &fakeModel{quality: goodQuality, content: printed}
	e := newEngine(t, model, chainWith(study.ToolGeneralOCR, &fakeBackend{name: "google_vision", text: cellText}), nil)

	req := request(t, e)
	req.Options.GenerateSummary = false
	req.Options.GenerateExplanation = false
	s := e.Process(context.Background(), req)

	assert.Equal(t, 0, model.count("summary"))
	assert.Equal(t, 0, model.count("explanation"))
	assert.Equal(t, 1, model.count("quiz"))
	assert.Len(t, s.QuizQuestions, 1)
}

func TestFirstGeneration(t *testing.T) {
	all := Options{GenerateSummary: true, GenerateExplanation: true, GenerateQuiz: true}
	assert.Equal(t, StageSummary, firstGeneration(all, StageSummary))
	assert.Equal(t, StageQuiz, firstGeneration(Options{GenerateQuiz: true}, StageSummary))
	assert.Equal(t, StageFinalize, firstGeneration(Options{GenerateSummary: true}, StageExplanation))
}

func TestShouldChunk(t *testing.T) {
	o := Options{EnableChunking: true, ChunkSize: 1000}
	assert.False(t, shouldChunk(o, strings.Repeat("a", 800)))
	assert.True(t, shouldChunk(o, strings.Repeat("a", 801)))
	o.EnableChunking = false
	assert.False(t, shouldChunk(o, strings.Repeat("a", 5000)))
}
