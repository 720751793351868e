package study

import "time"

// Quality is the image quality classification
type Quality string

const (
	QualityHigh   Quality = "HIGH"
	QualityMedium Quality = "MEDIUM"
	QualityLow    Quality = "LOW"
)

// ParseQuality normalizes a classification label. Unknown labels map to MEDIUM.
func ParseQuality(s string) Quality {
	switch Quality(upper(s)) {
	case QualityHigh:
		return QualityHigh
	case QualityLow:
		return QualityLow
	default:
		return QualityMedium
	}
}

// ContentType is the dominant kind of content in the image
type ContentType string

const (
	ContentHandwritten ContentType = "HANDWRITTEN_TEXT"
	ContentPrinted     ContentType = "PRINTED_TEXT"
	ContentDiagram     ContentType = "DIAGRAM"
	ContentMixed       ContentType = "MIXED"
)

// ParseContentType normalizes a content type label. Unknown labels map to MIXED.
func ParseContentType(s string) ContentType {
	switch ContentType(upper(s)) {
	case ContentHandwritten, "HANDWRITTEN":
		return ContentHandwritten
	case ContentPrinted, "PRINTED":
		return ContentPrinted
	case ContentDiagram:
		return ContentDiagram
	default:
		return ContentMixed
	}
}

// Tool identifies an extraction backend role
type Tool string

const (
	ToolHandwritingOCR Tool = "handwriting_ocr"
	ToolGeneralOCR     Tool = "general_ocr"
	ToolVisionLLM      Tool = "vision_llm"
	ToolNone           Tool = "none"
)

// QuestionType constants
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionShortAnswer    = "short_answer"
	QuestionTrueFalse      = "true_false"
	QuestionFillInBlank    = "fill_in_blank"
)

// QualityAssessment is the parsed output of the quality classifier
type QualityAssessment struct {
	Score           float64  `json:"score"`
	Classification  Quality  `json:"classification"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ContentClassification is the parsed output of the content classifier
type ContentClassification struct {
	ContentType ContentType `json:"content_type"`
	Confidence  float64     `json:"confidence"`
}

// QuizQuestion is a single generated question
type QuizQuestion struct {
	Question      string   `json:"question"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Difficulty    string   `json:"difficulty"`
	Topic         string   `json:"topic,omitempty"`
}

// ChunkResult is the output of processing one document chunk.
// Error is non-empty when the chunk failed; the content flags are always set.
type ChunkResult struct {
	ChunkID        string         `json:"chunk_id"`
	Index          int            `json:"index"`
	Summary        string         `json:"summary,omitempty"`
	Explanation    string         `json:"explanation,omitempty"`
	Quiz           []QuizQuestion `json:"quiz,omitempty"`
	HasMath        bool           `json:"has_math"`
	HasChemical    bool           `json:"has_chemical"`
	HasSuperSub    bool           `json:"has_supersub"`
	WordCount      int            `json:"word_count"`
	CharacterCount int            `json:"character_count"`
	Error          string         `json:"error,omitempty"`
}

// Failed reports whether the chunk produced an error marker
func (r ChunkResult) Failed() bool {
	return r.Error != ""
}

// ChunkStatistics aggregates chunked processing outcomes
type ChunkStatistics struct {
	TotalChunks      int `json:"total_chunks"`
	SuccessfulChunks int `json:"successful_chunks"`
	FailedChunks     int `json:"failed_chunks"`
	MathChunks       int `json:"math_chunks"`
	ChemicalChunks   int `json:"chemical_chunks"`
	SuperSubChunks   int `json:"supersub_chunks"`
}

// State is the record threaded through the pipeline. Stages take a State by
// value and return the next one; Clone must be used before mutating slices.
type State struct {
	RunID     string
	ImageRef  string
	ImageData []byte
	UserID    string

	StartedAt  time.Time
	FinishedAt time.Time

	QualityScore           float64
	QualityClassification  Quality
	QualityIssues          []string
	QualityRecommendations []string

	ContentType       ContentType
	ContentConfidence float64
	PreviewText       string

	ExtractedText        string
	ExtractionConfidence float64
	ToolUsed             Tool
	BackendUsed          string
	PreprocessingApplied []string

	Summary       string
	Explanation   string
	QuizQuestions []QuizQuestion

	Chunked    bool
	ChunkStats *ChunkStatistics

	NeedsPreprocessing bool
	ShouldProceed      bool
	RecommendedAction  string
	ErrorMessage       string
	Warnings           []string
	// Degraded is set when any stage substituted a fallback for a model answer
	Degraded   bool
	RetryCount int
}

// NewState creates the initial state for a run
func NewState(runID, imageRef, userID string, image []byte, now time.Time) State {
	return State{
		RunID:         runID,
		ImageRef:      imageRef,
		ImageData:     image,
		UserID:        userID,
		StartedAt:     now,
		ShouldProceed: true,
		ToolUsed:      ToolNone,
	}
}

// Clone returns a copy that shares no slices with s. ImageData is shared
// because stages replace it rather than write into it.
func (s State) Clone() State {
	out := s
	out.QualityIssues = cloneStrings(s.QualityIssues)
	out.QualityRecommendations = cloneStrings(s.QualityRecommendations)
	out.PreprocessingApplied = cloneStrings(s.PreprocessingApplied)
	out.Warnings = cloneStrings(s.Warnings)
	if s.QuizQuestions != nil {
		out.QuizQuestions = make([]QuizQuestion, len(s.QuizQuestions))
		for i, q := range s.QuizQuestions {
			q.Options = cloneStrings(q.Options)
			out.QuizQuestions[i] = q
		}
	}
	if s.ChunkStats != nil {
		stats := *s.ChunkStats
		out.ChunkStats = &stats
	}
	return out
}

// ForChunk derives the state a chunk task works on: the chunk text plus the
// quality and content metadata of the parent run.
func (s State) ForChunk(text string) State {
	return State{
		RunID:                 s.RunID,
		ImageRef:              s.ImageRef,
		UserID:                s.UserID,
		StartedAt:             s.StartedAt,
		QualityScore:          s.QualityScore,
		QualityClassification: s.QualityClassification,
		ContentType:           s.ContentType,
		ContentConfidence:     s.ContentConfidence,
		ExtractedText:         text,
		ShouldProceed:         true,
		ToolUsed:              s.ToolUsed,
	}
}

// Stop returns a copy of s that will not run any further AI stage
func (s State) Stop(reason string) State {
	out := s.Clone()
	out.ShouldProceed = false
	if reason != "" {
		out.ErrorMessage = reason
	}
	return out
}

// AddWarning returns a copy of s with the warning appended once
func (s State) AddWarning(w string) State {
	out := s.Clone()
	for _, existing := range out.Warnings {
		if existing == w {
			return out
		}
	}
	out.Warnings = append(out.Warnings, w)
	return out
}

// Elapsed returns the processing time of a finished run
func (s State) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
