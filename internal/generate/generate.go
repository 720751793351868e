// Package generate produces study artifacts (summary, explanation, quiz)
// from extracted text with a language model.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-study-pipeline/internal/llm"
	"github.com/tendant/simple-study-pipeline/internal/parse"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

const (
	InsufficientSummary    = "No sufficient text found for summary generation."
	NoExplanationText      = "No text available for explanation generation."
	noSummaryAvailable     = "No summary available"
	minSummaryInput        = 10
	summaryFailurePreview  = 200
	explainFailurePreview  = 300
	defaultQuizParseLimit  = 10
	textQuizParseLimit     = 5
	maxParsedQuestionRunes = 300
)

// Writer generates study artifacts
type Writer struct {
	gen llm.Generator
}

// NewWriter creates a writer backed by gen
func NewWriter(gen llm.Generator) *Writer {
	return &Writer{gen: gen}
}

// Summary returns a summary of text. Text shorter than 10 characters yields
// InsufficientSummary without calling the model.
func (w *Writer) Summary(ctx context.Context, text string, ct study.ContentType) (string, error) {
	if len([]rune(strings.TrimSpace(text))) < minSummaryInput {
		return InsufficientSummary, nil
	}
	resp, err := w.gen.Generate(ctx, fmt.Sprintf(summaryPrompt, text, contentLabel(ct)), nil)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return field(resp, "summary_text"), nil
}

// Explanation returns a detailed explanation of text
func (w *Writer) Explanation(ctx context.Context, text string, ct study.ContentType, summary string) (string, error) {
	if text == "" {
		return NoExplanationText, nil
	}
	if summary == "" {
		summary = noSummaryAvailable
	}
	resp, err := w.gen.Generate(ctx, fmt.Sprintf(explanationPrompt, text, contentLabel(ct), summary), nil)
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}
	return field(resp, "detailed_explanation"), nil
}

// Quiz returns up to count questions about text
func (w *Writer) Quiz(ctx context.Context, text string, ct study.ContentType, summary string, count int) ([]study.QuizQuestion, error) {
	if text == "" {
		return []study.QuizQuestion{}, nil
	}
	if count <= 0 {
		count = 5
	}
	resp, err := w.gen.Generate(ctx, fmt.Sprintf(quizPrompt, text, contentLabel(ct), summary, count), nil)
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	return ParseQuiz(resp, count), nil
}

// SummaryFailure is the placeholder summary used when generation failed
func SummaryFailure(err error, text string) string {
	return fmt.Sprintf("Summary generation failed: %v. Original content: %s...", err, prefix(text, summaryFailurePreview))
}

// ExplanationFailure is the placeholder explanation used when generation failed
func ExplanationFailure(err error, text string) string {
	return fmt.Sprintf("Explanation generation failed: %v. Content overview: %s...", err, prefix(text, explainFailurePreview))
}

// field returns obj[key] from the first JSON object in resp, or the trimmed
// response when there is no object or no such key.
func field(resp, key string) string {
	if obj, err := parse.Object(resp); err == nil {
		if v, ok := parse.String(obj, key); ok {
			return v
		}
	}
	return strings.TrimSpace(resp)
}

func contentLabel(ct study.ContentType) string {
	if ct == "" {
		return "mixed"
	}
	return strings.ToLower(string(ct))
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
