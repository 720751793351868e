// Package classify scores image quality and classifies image content with a
// vision model. Both classifiers always return a usable value.
package classify

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/parse"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// FailedAssessment is used when the model could not be reached
var FailedAssessment = study.QualityAssessment{
	Score:          0.3,
	Classification: study.QualityLow,
	Issues:         []string{"Quality assessment failed"},
}

const heuristicIssueLimit = 3

var scorePattern = regexp.MustCompile(`0\.\d+|\d+\.\d+`)

// Quality assesses image quality
type Quality struct {
	gen llm.Generator
}

// NewQuality creates a quality classifier
func NewQuality(gen llm.Generator) *Quality {
	return &Quality{gen: gen}
}

// Assess calls the model and parses its answer. The assessment is always
// usable; a non-nil error means FailedAssessment was substituted.
func (q *Quality) Assess(ctx context.Context, image []byte) (study.QualityAssessment, error) {
	resp, err := q.gen.Generate(ctx, qualityPrompt, image)
	if err != nil {
		return cloneAssessment(FailedAssessment), err
	}
	return ParseQuality(resp), nil
}

// ParseQuality reads a model answer: JSON first, then keyword heuristics,
// then a neutral default.
func ParseQuality(resp string) study.QualityAssessment {
	if obj, err := parse.Object(resp); err == nil {
		out := study.QualityAssessment{Score: 0.5, Classification: study.QualityMedium}
		if score, ok := parse.Float(obj, "score"); ok {
			out.Score = score
		}
		if label, ok := parse.String(obj, "classification"); ok {
			out.Classification = study.ParseQuality(label)
		}
		out.Score = study.Clamp01(out.Score)
		out.Issues = study.CapStrings(parse.Strings(obj, "issues"), study.MaxListItems)
		out.Recommendations = study.CapStrings(parse.Strings(obj, "recommendations"), study.MaxListItems)
		return out
	}

	if strings.TrimSpace(resp) == "" {
		return study.QualityAssessment{
			Score:           0.5,
			Classification:  study.QualityMedium,
			Issues:          []string{"Quality assessment failed"},
			Recommendations: []string{"Try taking a clearer photo"},
		}
	}
	return heuristicQuality(resp)
}

func heuristicQuality(resp string) study.QualityAssessment {
	out := study.QualityAssessment{Score: 0.5, Classification: study.QualityMedium, Issues: []string{}, Recommendations: []string{}}
	for _, line := range strings.Split(strings.ToLower(resp), "\n") {
		if strings.Contains(line, "score") && strings.ContainsAny(line, "0123456789") {
			if m := scorePattern.FindString(line); m != "" {
				if f, err := strconv.ParseFloat(m, 64); err == nil {
					out.Score = f
				}
			}
		}

		switch {
		case containsAny(line, "high", "good", "excellent"):
			out.Classification = study.QualityHigh
		case containsAny(line, "low", "poor", "bad"):
			out.Classification = study.QualityLow
		}

		if containsAny(line, "blur", "dark", "noise", "tilt") && len(out.Issues) < heuristicIssueLimit {
			out.Issues = append(out.Issues, strings.TrimSpace(line))
		}
	}
	out.Score = study.Clamp01(out.Score)
	return out
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func cloneAssessment(a study.QualityAssessment) study.QualityAssessment {
	a.Issues = append([]string(nil), a.Issues...)
	a.Recommendations = append([]string(nil), a.Recommendations...)
	return a
}
