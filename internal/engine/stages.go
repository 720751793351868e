package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tendant/simple-study-pipeline/internal/chunking"
	"github.com/tendant/simple-study-pipeline/internal/chunkproc"
	"github.com/tendant/simple-study-pipeline/internal/classify"
	"github.com/tendant/simple-study-pipeline/internal/generate"
	"github.com/tendant/simple-study-pipeline/internal/merge"
	"github.com/tendant/simple-study-pipeline/internal/preprocess"
	"github.com/tendant/simple-study-pipeline/internal/routing"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Messages recorded on the state
const (
	MsgImageTooLarge      = "Image too large for processing"
	MsgInsufficientText   = "Insufficient text extracted from image"
	MsgPreprocessFallback = "Image preprocessing failed, using original image"
)

func (e *Engine) validate(_ context.Context, r *run, s study.State) (study.State, error) {
	info, err := preprocess.Inspect(s.ImageData, e.cfg.MaxImageSize, e.cfg.SupportedFormats)
	if errors.Is(err, preprocess.ErrImageTooLarge) {
		return s.Stop(MsgImageTooLarge), nil
	}
	if err != nil {
		return s, err
	}
	r.log.Info("image validated", "format", info.Format, "width", info.Width, "height", info.Height)
	return s, nil
}

func recoverValidate(_ *run, in study.State, err error) study.State {
	return in.Stop(fmt.Sprintf("Image validation failed: %v", err))
}

func (e *Engine) assessQuality(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	a, err := e.quality.Assess(ctx, s.ImageData)
	if err != nil {
		r.log.Warn("quality assessment failed, using default", "error", err)
		s.Degraded = true
	}
	s = applyQuality(s, a)
	r.log.Info("quality assessed", "classification", s.QualityClassification, "score", s.QualityScore)
	return s, nil
}

func recoverQuality(_ *run, in study.State, _ error) study.State {
	out := applyQuality(in.Clone(), classify.FailedAssessment)
	out.Degraded = true
	return out
}

func applyQuality(s study.State, a study.QualityAssessment) study.State {
	s.QualityScore = study.Clamp01(a.Score)
	s.QualityClassification = a.Classification
	s.QualityIssues = append([]string(nil), a.Issues...)
	s.QualityRecommendations = append([]string(nil), a.Recommendations...)
	return s
}

func (e *Engine) classifyContent(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	s.PreviewText = e.chain.Preview(ctx, s.ImageData, classify.PreviewLimit)
	c, err := e.content.Classify(ctx, s.ImageData, s.PreviewText)
	if err != nil {
		r.log.Warn("content classification failed, using default", "error", err)
		s.Degraded = true
	}
	s.ContentType = c.ContentType
	s.ContentConfidence = study.Clamp01(c.Confidence)
	r.log.Info("content classified", "content_type", s.ContentType, "confidence", s.ContentConfidence)
	return s, nil
}

func recoverContent(_ *run, in study.State, _ error) study.State {
	out := in.Clone()
	out.ContentType = classify.FailedClassification.ContentType
	out.ContentConfidence = classify.FailedClassification.Confidence
	out.Degraded = true
	return out
}

func (e *Engine) route(_ context.Context, r *run, s study.State) (study.State, error) {
	d := routing.Decide(routing.Input{
		Quality:     s.QualityClassification,
		Score:       s.QualityScore,
		ContentType: s.ContentType,
	}, e.cfg.QualityThreshold)

	s.NeedsPreprocessing = d.NeedsPreprocessing
	s.RecommendedAction = d.RecommendedAction
	s.ToolUsed = d.Backend
	if !d.ShouldProceed {
		r.log.Warn("processing stopped by routing", "score", s.QualityScore, "reason", d.Reason)
		return s.Stop(d.Reason), nil
	}
	r.log.Info("routed", "preprocess", s.NeedsPreprocessing, "backend", s.ToolUsed)
	return s, nil
}

func recoverRoute(_ *run, in study.State, err error) study.State {
	out := in.AddWarning(fmt.Sprintf("Routing failed: %v", err))
	out.ToolUsed = study.ToolGeneralOCR
	return out
}

func (e *Engine) preprocess(_ context.Context, r *run, s study.State) (study.State, error) {
	data, filters, err := preprocess.Apply(s.ImageData, s.QualityIssues)
	if err != nil {
		return s, err
	}
	s.ImageData = data
	s.PreprocessingApplied = filters
	r.log.Info("image preprocessed", "filters", filters, "bytes", len(data))
	return s, nil
}

func recoverPreprocess(_ *run, in study.State, _ error) study.State {
	return in.AddWarning(MsgPreprocessFallback)
}

func (e *Engine) extractText(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	ex, err := e.chain.Extract(ctx, s.ImageData, s.ToolUsed)
	for _, a := range ex.Attempts {
		r.log.Debug("extraction attempt", "tool", a.Tool, "backend", a.Backend, "chars", a.Chars, "error", a.Error, "duration", a.Duration)
	}
	if err != nil {
		if ctx.Err() != nil {
			return s, err
		}
		s = failedExtraction(s, err)
	} else {
		s.ExtractedText = ex.Text
		s.ExtractionConfidence = ex.Confidence
		s.ToolUsed = ex.Tool
		s.BackendUsed = ex.Backend
		if r.opts.NormalizeMath {
			s.ExtractedText = chunking.PreprocessMath(s.ExtractedText)
		}
	}

	if e.insufficient(s.ExtractedText) {
		r.log.Warn("minimal text extracted", "chars", utf8.RuneCountInString(s.ExtractedText))
		s = s.AddWarning(MsgInsufficientText)
	}
	r.log.Info("text extracted", "chars", utf8.RuneCountInString(s.ExtractedText), "tool", s.ToolUsed, "confidence", s.ExtractionConfidence)
	return s, nil
}

func recoverExtract(_ *run, in study.State, err error) study.State {
	return failedExtraction(in.Clone(), err).AddWarning(MsgInsufficientText)
}

func failedExtraction(s study.State, err error) study.State {
	s.ExtractedText = ""
	s.ExtractionConfidence = 0
	s.ToolUsed = study.ToolNone
	s.BackendUsed = ""
	return s.AddWarning(fmt.Sprintf("Text extraction failed: %v", err))
}

func (e *Engine) chunk(ctx context.Context, r *run, s study.State) (study.State, error) {
	chunks := chunking.CreateChunks(s.ExtractedText, chunking.Options{
		ChunkSize:              r.opts.ChunkSize,
		OverlapSize:            e.cfg.ChunkOverlap,
		PreserveSpecialContent: r.opts.PreserveEquations,
	})
	r.log.Info("chunked processing", "chunks", len(chunks), "chunk_size", r.opts.ChunkSize, "concurrency", r.opts.MaxConcurrency)

	proc := chunkproc.New(e.chunkTask, chunkproc.Options{
		MaxConcurrency: r.opts.MaxConcurrency,
		BatchDelay:     e.cfg.BatchDelay,
		Logger:         r.log,
		Metrics:        e.metrics,
	})
	results := proc.Process(ctx, chunks, s, func(completed, total int) {
		r.log.Debug("chunk progress", "completed", completed, "total", total)
	})

	merged := merge.Merge(results, e.cfg.MaxMergedQuiz)
	if merged.Stats.SuccessfulChunks == 0 {
		return s, fmt.Errorf("%w (%d chunks)", ErrAllChunksFailed, merged.Stats.TotalChunks)
	}

	stats := merged.Stats
	s.Summary = merged.Summary
	s.Explanation = merged.Explanation
	s.QuizQuestions = merged.Quiz
	s.Chunked = true
	s.ChunkStats = &stats
	if stats.FailedChunks > 0 {
		s.Degraded = true
		s = s.AddWarning(fmt.Sprintf("%d of %d chunks failed", stats.FailedChunks, stats.TotalChunks))
	}
	return s, nil
}

func recoverChunk(_ *run, in study.State, err error) study.State {
	return in.AddWarning(fmt.Sprintf("Chunked processing failed: %v", err))
}

func (e *Engine) summary(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	summary, err := e.writer.Summary(ctx, s.ExtractedText, s.ContentType)
	if err != nil {
		return s, err
	}
	s.Summary = summary
	r.log.Info("summary generated", "chars", utf8.RuneCountInString(summary))
	return s, nil
}

func recoverSummary(_ *run, in study.State, err error) study.State {
	out := in.Clone()
	out.Summary = generate.SummaryFailure(err, in.ExtractedText)
	out.Degraded = true
	return out
}

func (e *Engine) explanation(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	explanation, err := e.writer.Explanation(ctx, s.ExtractedText, s.ContentType, s.Summary)
	if err != nil {
		return s, err
	}
	s.Explanation = explanation
	r.log.Info("explanation generated", "chars", utf8.RuneCountInString(explanation))
	return s, nil
}

func recoverExplanation(_ *run, in study.State, err error) study.State {
	out := in.Clone()
	out.Explanation = generate.ExplanationFailure(err, in.ExtractedText)
	out.Degraded = true
	return out
}

func (e *Engine) quiz(ctx context.Context, r *run, s study.State) (study.State, error) {
	if !s.ShouldProceed {
		return s, nil
	}
	questions, err := e.writer.Quiz(ctx, s.ExtractedText, s.ContentType, s.Summary, r.opts.QuizCount)
	if err != nil {
		return s, err
	}
	s.QuizQuestions = questions
	r.log.Info("quiz generated", "questions", len(questions))
	return s, nil
}

func recoverQuiz(r *run, in study.State, err error) study.State {
	r.log.Warn("quiz generation failed, using fallback questions", "error", err)
	out := in.Clone()
	out.QuizQuestions = generate.FallbackQuiz(in.ExtractedText)
	out.Degraded = true
	return out
}

func (e *Engine) finalize(_ context.Context, r *run, s study.State) (study.State, error) {
	s.FinishedAt = e.now()
	s.RetryCount = int(r.retries.Load())
	if s.ShouldProceed && s.Summary == "" && e.insufficient(s.ExtractedText) {
		s.Summary = generate.InsufficientSummary
	}
	if s.QuizQuestions == nil {
		s.QuizQuestions = []study.QuizQuestion{}
	}

	ok := s.ShouldProceed && s.ErrorMessage == ""
	e.metrics.Run(ok)
	r.log.Info("processing completed",
		"success", ok,
		"summary", s.Summary != "",
		"explanation", s.Explanation != "",
		"quiz", len(s.QuizQuestions),
		"chunked", s.Chunked,
		"degraded", s.Degraded,
		"retries", s.RetryCount,
		"elapsed", s.Elapsed(),
		"error", s.ErrorMessage,
	)
	return s, nil
}

func (e *Engine) recoverFinalize(r *run, in study.State, _ error) study.State {
	out := in.Clone()
	out.FinishedAt = e.now()
	out.RetryCount = int(r.retries.Load())
	return out
}

func (e *Engine) insufficient(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < e.cfg.MinTextLength
}
