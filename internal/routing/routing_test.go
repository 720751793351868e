package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-study-pipeline/internal/study"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		preprocess bool
		proceed    bool
		backend    study.Tool
		action     string
	}{
		{"high quality printed", Input{study.QualityHigh, 0.95, study.ContentPrinted}, false, true, study.ToolGeneralOCR, ""},
		{"low classification", Input{study.QualityLow, 0.7, study.ContentHandwritten}, true, true, study.ToolHandwritingOCR, ActionPreprocess},
		{"below threshold", Input{study.QualityMedium, 0.5, study.ContentDiagram}, true, true, study.ToolVisionLLM, ActionMinorPreprocess},
		{"exactly threshold", Input{study.QualityMedium, 0.6, study.ContentMixed}, false, true, study.ToolGeneralOCR, ""},
		{"hard stop", Input{study.QualityLow, 0.1, study.ContentPrinted}, true, false, study.ToolNone, ActionPreprocess},
		{"hard stop medium", Input{study.QualityMedium, 0.19, study.ContentPrinted}, true, false, study.ToolNone, ActionMinorPreprocess},
		{"floor is exclusive", Input{study.QualityMedium, 0.2, study.ContentPrinted}, true, true, study.ToolGeneralOCR, ActionMinorPreprocess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.in, 0.6)
			assert.Equal(t, tt.preprocess, d.NeedsPreprocessing)
			assert.Equal(t, tt.proceed, d.ShouldProceed)
			assert.Equal(t, tt.backend, d.Backend)
			assert.Equal(t, tt.action, d.RecommendedAction)
			if !tt.proceed {
				assert.Contains(t, d.Reason, "too low")
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	in := Input{study.QualityMedium, 0.45, study.ContentHandwritten}
	first := Decide(in, 0.6)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Decide(in, 0.6))
	}
}
