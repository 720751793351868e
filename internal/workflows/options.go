package workflows

import (
	"github.com/tendant/simple-study-pipeline/internal/engine"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// EngineOptions applies request overrides on top of base
func EngineOptions(base engine.Options, o *pipeline.StudyOptions) engine.Options {
	if o == nil {
		return base
	}
	if o.GenerateSummary != nil {
		base.GenerateSummary = *o.GenerateSummary
	}
	if o.GenerateExplanation != nil {
		base.GenerateExplanation = *o.GenerateExplanation
	}
	if o.GenerateQuiz != nil {
		base.GenerateQuiz = *o.GenerateQuiz
	}
	if o.EnableChunking != nil {
		base.EnableChunking = *o.EnableChunking
	}
	if o.QuizCount > 0 {
		base.QuizCount = o.QuizCount
	}
	if o.ChunkSize > 0 {
		base.ChunkSize = o.ChunkSize
	}
	if o.MaxConcurrency > 0 {
		base.MaxConcurrency = o.MaxConcurrency
	}
	return base
}
