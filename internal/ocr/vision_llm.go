package ocr

import (
	"context"

	"github.com/tendant/simple-study-pipeline/internal/llm"
)

const visionExtractPrompt = "Extract all text content from this image. Provide clean, formatted text without interpretation."

// visionLLMConfidence is reported for model transcriptions, which carry no score
const visionLLMConfidence = 0.8

// VisionLLM transcribes images with a vision-capable language model
type VisionLLM struct {
	gen llm.Generator
}

// NewVisionLLM wraps a generator as an extraction backend
func NewVisionLLM(gen llm.Generator) *VisionLLM {
	return &VisionLLM{gen: gen}
}

func (v *VisionLLM) Name() string { return "vision_llm" }

func (v *VisionLLM) Extract(ctx context.Context, image []byte) (Result, error) {
	text, err := v.gen.Generate(ctx, visionExtractPrompt, image)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Confidence: visionLLMConfidence}, nil
}
