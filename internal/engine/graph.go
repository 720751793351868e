package engine

import (
	"context"
	"unicode/utf8"

	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Stage names
const (
	StageValidate        = "validate"
	StageAssessQuality   = "assess_quality"
	StageClassifyContent = "classify_content"
	StageRoute           = "route"
	StagePreprocess      = "preprocess"
	StageExtractText     = "extract_text"
	StageChunk           = "chunk"
	StageSummary         = "generate_summary"
	StageExplanation     = "generate_explanation"
	StageQuiz            = "generate_quiz"
	StageFinalize        = "finalize"
	StageEnd             = "end"
)

const (
	// texts shorter than this never take the chunked path
	minChunkableText = 50
	// chunking starts once text exceeds this share of the chunk size
	chunkThresholdRatio = 0.8
)

type stageFunc func(ctx context.Context, r *run, s study.State) (study.State, error)

type node struct {
	run stageFunc
	// recover derives a usable state from the stage input after a failure
	recover func(r *run, in study.State, err error) study.State
	// next picks the following stage from the stage output
	next func(r *run, s study.State) string
}

func (e *Engine) buildGraph() map[string]node {
	return map[string]node{
		StageValidate: {
			run:     e.validate,
			recover: recoverValidate,
			next:    proceedTo(StageAssessQuality),
		},
		StageAssessQuality: {
			run:     e.assessQuality,
			recover: recoverQuality,
			next:    proceedTo(StageClassifyContent),
		},
		StageClassifyContent: {
			run:     e.classifyContent,
			recover: recoverContent,
			next:    proceedTo(StageRoute),
		},
		StageRoute: {
			run:     e.route,
			recover: recoverRoute,
			next:    afterRoute,
		},
		StagePreprocess: {
			run:     e.preprocess,
			recover: recoverPreprocess,
			next:    proceedTo(StageExtractText),
		},
		StageExtractText: {
			run:     e.extractText,
			recover: recoverExtract,
			next:    e.afterExtract,
		},
		StageChunk: {
			run:     e.chunk,
			recover: recoverChunk,
			next:    afterChunk,
		},
		StageSummary: {
			run:     e.summary,
			recover: recoverSummary,
			next:    generationAfter(StageSummary),
		},
		StageExplanation: {
			run:     e.explanation,
			recover: recoverExplanation,
			next:    generationAfter(StageExplanation),
		},
		StageQuiz: {
			run:     e.quiz,
			recover: recoverQuiz,
			next:    generationAfter(StageQuiz),
		},
		StageFinalize: {
			run:     e.finalize,
			recover: e.recoverFinalize,
			next:    func(*run, study.State) string { return StageEnd },
		},
	}
}

// proceedTo continues to stage unless the run was stopped
func proceedTo(stage string) func(*run, study.State) string {
	return func(_ *run, s study.State) string {
		if !s.ShouldProceed {
			return StageFinalize
		}
		return stage
	}
}

func afterRoute(_ *run, s study.State) string {
	switch {
	case !s.ShouldProceed:
		return StageFinalize
	case s.NeedsPreprocessing:
		return StagePreprocess
	default:
		return StageExtractText
	}
}

func (e *Engine) afterExtract(r *run, s study.State) string {
	if !s.ShouldProceed || e.insufficient(s.ExtractedText) {
		return StageFinalize
	}
	if shouldChunk(r.opts, s.ExtractedText) {
		return StageChunk
	}
	return firstGeneration(r.opts, StageSummary)
}

// afterChunk skips generation when the chunked path produced the artifacts;
// a failed chunked path falls back to the single-pass stages.
func afterChunk(r *run, s study.State) string {
	if !s.ShouldProceed || s.Chunked {
		return StageFinalize
	}
	return firstGeneration(r.opts, StageSummary)
}

func generationAfter(stage string) func(*run, study.State) string {
	return func(r *run, s study.State) string {
		if !s.ShouldProceed {
			return StageFinalize
		}
		switch stage {
		case StageSummary:
			return firstGeneration(r.opts, StageExplanation)
		case StageExplanation:
			return firstGeneration(r.opts, StageQuiz)
		default:
			return StageFinalize
		}
	}
}

// firstGeneration returns the first enabled generation stage at or after from
func firstGeneration(o Options, from string) string {
	order := []struct {
		stage   string
		enabled bool
	}{
		{StageSummary, o.GenerateSummary},
		{StageExplanation, o.GenerateExplanation},
		{StageQuiz, o.GenerateQuiz},
	}
	started := false
	for _, g := range order {
		if g.stage == from {
			started = true
		}
		if started && g.enabled {
			return g.stage
		}
	}
	return StageFinalize
}

func shouldChunk(o Options, text string) bool {
	n := utf8.RuneCountInString(text)
	return o.EnableChunking && n >= minChunkableText && float64(n) > chunkThresholdRatio*float64(o.ChunkSize)
}
