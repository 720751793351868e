// Package routing decides how an image is processed from its quality and
// content signals. Decisions are pure and deterministic.
package routing

import (
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// HardStopScore is the absolute quality floor below which processing stops
const HardStopScore = 0.2

const (
	ActionPreprocess      = "Apply image preprocessing to improve quality"
	ActionMinorPreprocess = "Minor preprocessing recommended"
	ReasonTooLow          = "Image quality too low for processing"
)

// Input holds the signals routing depends on
type Input struct {
	Quality     study.Quality
	Score       float64
	ContentType study.ContentType
}

// Decision is the routing outcome
type Decision struct {
	NeedsPreprocessing bool
	ShouldProceed      bool
	Backend            study.Tool
	RecommendedAction  string
	Reason             string
}

// Decide applies the routing table. threshold is the score below which minor
// preprocessing is recommended.
func Decide(in Input, threshold float64) Decision {
	d := Decision{ShouldProceed: true}

	switch {
	case in.Quality == study.QualityLow:
		d.NeedsPreprocessing = true
		d.RecommendedAction = ActionPreprocess
	case in.Score < threshold:
		d.NeedsPreprocessing = true
		d.RecommendedAction = ActionMinorPreprocess
	}

	if in.Score < HardStopScore {
		d.ShouldProceed = false
		d.Reason = ReasonTooLow
		d.Backend = study.ToolNone
		return d
	}

	d.Backend = BackendFor(in.ContentType)
	return d
}

// BackendFor maps a content type to the preferred extraction backend
func BackendFor(ct study.ContentType) study.Tool {
	switch ct {
	case study.ContentHandwritten:
		return study.ToolHandwritingOCR
	case study.ContentDiagram:
		return study.ToolVisionLLM
	default:
		return study.ToolGeneralOCR
	}
}
