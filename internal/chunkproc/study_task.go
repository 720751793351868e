package chunkproc

import (
	"context"
	"fmt"

	"github.com/tendant/simple-study-pipeline/internal/chunking"
	"github.com/tendant/simple-study-pipeline/internal/generate"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// DefaultChunkQuiz caps quiz questions per chunk
const DefaultChunkQuiz = 3

// StudyTask generates summary, explanation and quiz for one chunk, in that order
type StudyTask struct {
	writer  *generate.Writer
	maxQuiz int
}

// NewStudyTask creates the standard chunk task
func NewStudyTask(w *generate.Writer, maxQuiz int) *StudyTask {
	if maxQuiz <= 0 {
		maxQuiz = DefaultChunkQuiz
	}
	return &StudyTask{writer: w, maxQuiz: maxQuiz}
}

// Run degrades each sub-task on its own: a failed summary or explanation is
// replaced by a message naming the chunk, a failed quiz by an empty list.
// Only cancellation is reported as an error.
func (t *StudyTask) Run(ctx context.Context, state study.State, chunk chunking.DocumentChunk) (study.ChunkResult, error) {
	text := state.ExtractedText

	summary, err := t.writer.Summary(ctx, text, state.ContentType)
	if err != nil {
		if ctx.Err() != nil {
			return study.ChunkResult{}, ctx.Err()
		}
		summary = fmt.Sprintf("Summary generation failed for %s: %v", chunk.ID, err)
	}
	if summary == "" {
		summary = "Summary for " + chunk.ID
	}

	explanation, err := t.writer.Explanation(ctx, text, state.ContentType, summary)
	if err != nil {
		if ctx.Err() != nil {
			return study.ChunkResult{}, ctx.Err()
		}
		explanation = fmt.Sprintf("Explanation generation failed for %s: %v", chunk.ID, err)
	}
	if explanation == "" {
		explanation = "Explanation for " + chunk.ID
	}

	quiz, err := t.writer.Quiz(ctx, text, state.ContentType, summary, t.maxQuiz)
	if err != nil {
		if ctx.Err() != nil {
			return study.ChunkResult{}, ctx.Err()
		}
		quiz = []study.QuizQuestion{}
	}
	if len(quiz) > t.maxQuiz {
		quiz = quiz[:t.maxQuiz]
	}

	return study.ChunkResult{
		Summary:     summary,
		Explanation: explanation,
		Quiz:        quiz,
	}, nil
}
