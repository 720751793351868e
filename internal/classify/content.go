package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/parse"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// FailedClassification is used when the model could not be reached
var FailedClassification = study.ContentClassification{
	ContentType: study.ContentMixed,
	Confidence:  0.5,
}

// PreviewLimit is the number of preview characters sent with the prompt
const PreviewLimit = 500

// Content classifies the dominant content type of an image
type Content struct {
	gen llm.Generator
}

// NewContent creates a content classifier
func NewContent(gen llm.Generator) *Content {
	return &Content{gen: gen}
}

// Classify calls the model with the image and a text preview. Never fails;
// the returned error only reports why the default was used.
func (c *Content) Classify(ctx context.Context, image []byte, preview string) (study.ContentClassification, error) {
	if r := []rune(preview); len(r) > PreviewLimit {
		preview = string(r[:PreviewLimit])
	}
	resp, err := c.gen.Generate(ctx, fmt.Sprintf(contentPrompt, preview), image)
	if err != nil {
		return FailedClassification, err
	}
	return ParseContent(resp), nil
}

// ParseContent reads a model answer: JSON first, then keyword heuristics
func ParseContent(resp string) study.ContentClassification {
	if obj, err := parse.Object(resp); err == nil {
		out := study.ContentClassification{ContentType: study.ContentMixed, Confidence: 0.7}
		if label, ok := parse.String(obj, "content_type"); ok {
			out.ContentType = study.ParseContentType(label)
		}
		if conf, ok := parse.Float(obj, "confidence"); ok {
			out.Confidence = conf
		}
		out.Confidence = study.Clamp01(out.Confidence)
		return out
	}

	if strings.TrimSpace(resp) == "" {
		return FailedClassification
	}

	lower := strings.ToLower(resp)
	switch {
	case containsAny(lower, "handwritten", "handwriting"):
		return study.ContentClassification{ContentType: study.ContentHandwritten, Confidence: 0.8}
	case containsAny(lower, "printed", "textbook"):
		return study.ContentClassification{ContentType: study.ContentPrinted, Confidence: 0.8}
	case containsAny(lower, "diagram", "chart", "graph"):
		return study.ContentClassification{ContentType: study.ContentDiagram, Confidence: 0.8}
	default:
		return study.ContentClassification{ContentType: study.ContentMixed, Confidence: 0.7}
	}
}
