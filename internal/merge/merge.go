// Package merge combines per-chunk results into one document-level result.
package merge

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-study-pipeline/internal/study"
)

const (
	// DefaultMaxQuiz caps the merged quiz
	DefaultMaxQuiz = 15

	NoSummary     = "No summary could be generated."
	NoExplanation = "No explanation could be generated."
)

// Merged is the combined output of a chunked run
type Merged struct {
	Summary     string
	Explanation string
	Quiz        []study.QuizQuestion
	Stats       study.ChunkStatistics
}

// Merge combines chunk results. Failed results are left out of the text and
// quiz but still counted in the statistics. It does not modify results.
func Merge(results []study.ChunkResult, maxQuiz int) Merged {
	if maxQuiz <= 0 {
		maxQuiz = DefaultMaxQuiz
	}

	var summaries, explanations []string
	var pooled []study.QuizQuestion
	stats := study.ChunkStatistics{TotalChunks: len(results)}

	for _, r := range results {
		if r.HasMath {
			stats.MathChunks++
		}
		if r.HasChemical {
			stats.ChemicalChunks++
		}
		if r.HasSuperSub {
			stats.SuperSubChunks++
		}
		if r.Failed() {
			continue
		}
		stats.SuccessfulChunks++
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		if r.Explanation != "" {
			explanations = append(explanations, r.Explanation)
		}
		pooled = append(pooled, r.Quiz...)
	}
	stats.FailedChunks = stats.TotalChunks - stats.SuccessfulChunks

	quiz := Dedupe(pooled)
	if len(quiz) > maxQuiz {
		quiz = quiz[:maxQuiz]
	}

	return Merged{
		Summary:     Sections(summaries, "## Document Summary", "Section", NoSummary),
		Explanation: Sections(explanations, "## Detailed Explanation", "Part", NoExplanation),
		Quiz:        quiz,
		Stats:       stats,
	}
}

// Sections joins parts under a header with numbered sub-headers.
// A single part is returned unchanged and no parts yields empty.
func Sections(parts []string, header, label, empty string) string {
	switch len(parts) {
	case 0:
		return empty
	case 1:
		return parts[0]
	}
	var b strings.Builder
	b.WriteString(header)
	for i, p := range parts {
		fmt.Fprintf(&b, "\n\n### %s %d\n\n%s", label, i+1, p)
	}
	return strings.TrimSpace(b.String())
}

// Dedupe drops questions whose trimmed lower-case text was already seen, and
// questions with no text. The first occurrence wins.
func Dedupe(questions []study.QuizQuestion) []study.QuizQuestion {
	seen := make(map[string]bool, len(questions))
	out := make([]study.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		key := strings.ToLower(strings.TrimSpace(q.Question))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
