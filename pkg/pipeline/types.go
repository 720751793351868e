package pipeline

// ProcessRequest represents a request to process content
type ProcessRequest struct {
	ContentID   string            `json:"content_id"`
	ObjectKey   string            `json:"object_key"`
	ContentHash *string           `json:"content_hash,omitempty"`
	Job         string            `json:"job"` // study
	Versions    map[string]int    `json:"versions"`
	UserID      string            `json:"user_id,omitempty"`
	Options     *StudyOptions     `json:"options,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ProcessResponse represents the response from triggering processing
type ProcessResponse struct {
	RunID           string `json:"run_id"`
	DedupeSeenCount int    `json:"dedupe_seen_count"`
}

// StudyOptions overrides per-run study settings. Unset fields keep the
// worker's configured defaults.
type StudyOptions struct {
	GenerateSummary     *bool `json:"generate_summary,omitempty"`
	GenerateExplanation *bool `json:"generate_explanation,omitempty"`
	GenerateQuiz        *bool `json:"generate_quiz,omitempty"`
	QuizCount           int   `json:"quiz_count,omitempty"`
	EnableChunking      *bool `json:"enable_chunking,omitempty"`
	ChunkSize           int   `json:"chunk_size,omitempty"`
	MaxConcurrency      int   `json:"max_concurrency,omitempty"`
}

// RunStatus is the public view of a queued run
type RunStatus struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"` // pending, running, succeeded, failed, cancelled
	Workflow  string `json:"workflow,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// EstimateRequest asks for the expected cost of processing a text
type EstimateRequest struct {
	TextLength     int `json:"text_length"`
	ChunkSize      int `json:"chunk_size,omitempty"`
	MaxConcurrency int `json:"max_concurrency,omitempty"`
}

// EstimateResponse is the predicted cost of processing a text
type EstimateResponse struct {
	EstimatedSeconds  int    `json:"estimated_time_seconds"`
	ChunksRequired    int    `json:"chunks_required"`
	Complexity        string `json:"complexity"`
	RecommendChunking bool   `json:"recommend_chunking"`
}

// JobType constants
const (
	JobStudy = "study"
)

// DerivedType constants (match simple-content conventions)
const (
	DerivedTypeStudyResult = "study_result"
	DerivedTypeOCRText     = "ocr_text"
)

// Bool returns a pointer to v, for StudyOptions toggles
func Bool(v bool) *bool { return &v }
