package study

import (
	"regexp"
	"sort"
	"strings"
)

// QualityResult is the quality sub-object of a processing result
type QualityResult struct {
	Score           float64  `json:"score"`
	Classification  Quality  `json:"classification"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ContentResult is the content type sub-object of a processing result
type ContentResult struct {
	ContentType          ContentType `json:"content_type"`
	Confidence           float64     `json:"confidence"`
	ProcessingTool       Tool        `json:"processing_tool"`
	PreprocessingApplied bool        `json:"preprocessing_applied"`
}

// TextExtractionResult is the extraction sub-object of a processing result
type TextExtractionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	ToolUsed   Tool    `json:"tool_used"`
	Backend    string  `json:"backend,omitempty"`
}

// SummaryResult wraps the generated summary
type SummaryResult struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	WordCount          int      `json:"word_count"`
	ReadingTimeMinutes int      `json:"reading_time_minutes"`
}

// ExplanationResult wraps the generated explanation
type ExplanationResult struct {
	Explanation       string   `json:"explanation"`
	ConceptsExplained []string `json:"concepts_explained"`
	DifficultyLevel   string   `json:"difficulty_level"`
}

// QuizResult wraps the generated quiz
type QuizResult struct {
	Questions            []QuizQuestion `json:"questions"`
	TotalQuestions       int            `json:"total_questions"`
	EstimatedTimeMinutes int            `json:"estimated_time_minutes"`
	TopicsCovered        []string       `json:"topics_covered"`
}

// ProcessingResult is the response shape returned to callers
type ProcessingResult struct {
	RunID                 string               `json:"run_id,omitempty"`
	Success               bool                 `json:"success"`
	ProcessingTimeSeconds float64              `json:"processing_time_seconds"`
	ImageQuality          QualityResult        `json:"image_quality"`
	ContentType           ContentResult        `json:"content_type"`
	TextExtraction        TextExtractionResult `json:"text_extraction"`
	Summary               *SummaryResult       `json:"summary,omitempty"`
	Explanation           *ExplanationResult   `json:"explanation,omitempty"`
	Quiz                  *QuizResult          `json:"quiz,omitempty"`
	ChunkStatistics       *ChunkStatistics     `json:"chunk_statistics,omitempty"`
	ErrorMessage          string               `json:"error_message,omitempty"`
	Warnings              []string             `json:"warnings"`
	Degraded              bool                 `json:"degraded,omitempty"`
	RetryCount            int                  `json:"retry_count,omitempty"`
}

// ResultOptions selects which artifacts are included in a result
type ResultOptions struct {
	IncludeSummary     bool
	IncludeExplanation bool
	IncludeQuiz        bool
	QuizCount          int
	MinTextLength      int
	QualityThreshold   float64
}

// BuildResult converts a finished state into the caller-facing result
func BuildResult(s State, opts ResultOptions) ProcessingResult {
	text := strings.TrimSpace(s.ExtractedText)
	success := s.ShouldProceed && s.ErrorMessage == "" && len([]rune(text)) >= opts.MinTextLength

	res := ProcessingResult{
		RunID:                 s.RunID,
		Success:               success,
		ProcessingTimeSeconds: s.Elapsed().Seconds(),
		ImageQuality: QualityResult{
			Score:           s.QualityScore,
			Classification:  s.QualityClassification,
			Issues:          nonNil(s.QualityIssues),
			Recommendations: qualityRecommendations(s, opts.QualityThreshold),
		},
		ContentType: ContentResult{
			ContentType:          s.ContentType,
			Confidence:           s.ContentConfidence,
			ProcessingTool:       s.ToolUsed,
			PreprocessingApplied: len(s.PreprocessingApplied) > 0,
		},
		TextExtraction: TextExtractionResult{
			Text:       s.ExtractedText,
			Confidence: s.ExtractionConfidence,
			ToolUsed:   s.ToolUsed,
			Backend:    s.BackendUsed,
		},
		ChunkStatistics: s.ChunkStats,
		ErrorMessage:    s.ErrorMessage,
		Degraded:        s.Degraded,
		RetryCount:      s.RetryCount,
	}

	if opts.IncludeSummary && s.Summary != "" {
		words := len(strings.Fields(s.Summary))
		res.Summary = &SummaryResult{
			Summary:            s.Summary,
			KeyPoints:          KeyPoints(s.Summary),
			WordCount:          words,
			ReadingTimeMinutes: max(1, words/200),
		}
	}

	if opts.IncludeExplanation && s.Explanation != "" {
		res.Explanation = &ExplanationResult{
			Explanation:       s.Explanation,
			ConceptsExplained: Concepts(s.Explanation),
			DifficultyLevel:   "intermediate",
		}
	}

	if opts.IncludeQuiz && len(s.QuizQuestions) > 0 {
		questions := s.QuizQuestions
		if opts.QuizCount > 0 && len(questions) > opts.QuizCount {
			questions = questions[:opts.QuizCount]
		}
		topics := map[string]struct{}{}
		for _, q := range questions {
			if q.Topic != "" {
				topics[q.Topic] = struct{}{}
			}
		}
		covered := make([]string, 0, len(topics))
		for t := range topics {
			covered = append(covered, t)
		}
		sort.Strings(covered)
		res.Quiz = &QuizResult{
			Questions:            questions,
			TotalQuestions:       len(questions),
			EstimatedTimeMinutes: len(questions) * 2,
			TopicsCovered:        covered,
		}
	}

	warnings := make([]string, 0, len(s.Warnings)+3)
	warnings = append(warnings, s.Warnings...)
	if s.QualityClassification == QualityLow {
		warnings = append(warnings, "Image quality is low, results may be inaccurate")
	}
	if s.ExtractionConfidence > 0 && s.ExtractionConfidence < 0.7 {
		warnings = append(warnings, "Text extraction confidence is low")
	}
	if s.NeedsPreprocessing {
		warnings = append(warnings, "Image required preprocessing")
	}
	res.Warnings = warnings

	return res
}

func qualityRecommendations(s State, threshold float64) []string {
	recs := make([]string, 0, len(s.QualityRecommendations)+len(s.QualityIssues)+1)
	recs = append(recs, s.QualityRecommendations...)
	for _, issue := range s.QualityIssues {
		issue = strings.ToLower(issue)
		switch {
		case strings.Contains(issue, "blur"):
			recs = append(recs, "Hold the camera steady and ensure proper focus")
		case strings.Contains(issue, "dark"), strings.Contains(issue, "light"):
			recs = append(recs, "Improve lighting conditions")
		case strings.Contains(issue, "angle"), strings.Contains(issue, "tilt"):
			recs = append(recs, "Take the photo straight-on, parallel to the page")
		case strings.Contains(issue, "resolution"):
			recs = append(recs, "Use higher resolution camera settings")
		}
	}
	if s.QualityScore > 0 && s.QualityScore < threshold {
		recs = append(recs, "Consider retaking the photo with better conditions")
	}
	return recs
}

var keyPointWords = []string{"important", "key", "main", "primary", "essential", "crucial"}

// KeyPoints picks up to five sentences from a summary, preferring ones that
// announce themselves as important.
func KeyPoints(summary string) []string {
	sentences := strings.Split(summary, ". ")
	points := make([]string, 0, 5)
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 20 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, w := range keyPointWords {
			if strings.Contains(lower, w) {
				points = append(points, sentence)
				break
			}
		}
	}
	if len(points) == 0 {
		for i, sentence := range sentences {
			if i == 3 {
				break
			}
			if sentence = strings.TrimSpace(sentence); len(sentence) > 20 {
				points = append(points, sentence)
			}
		}
	}
	if len(points) > 5 {
		points = points[:5]
	}
	return points
}

var conceptPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

var conceptStopwords = map[string]bool{"the": true, "and": true, "for": true, "this": true, "that": true}

// Concepts returns up to ten distinct capitalized terms, in order of appearance
func Concepts(explanation string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, 10)
	for _, term := range conceptPattern.FindAllString(explanation, -1) {
		if len(term) <= 3 || conceptStopwords[strings.ToLower(term)] || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
