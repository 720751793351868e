package config

import (
	"time"
)

// Pipeline holds the options consumed by the processing engine
type Pipeline struct {
	// QualityThreshold is the score below which minor preprocessing is applied
	QualityThreshold float64

	// MinTextLength is the minimum extracted length for AI generation to run
	MinTextLength int

	// DefaultQuizQuestions is used when a request does not ask for a count
	DefaultQuizQuestions int

	// MaxQuizQuestions bounds any requested count
	MaxQuizQuestions int

	// EnableChunking turns on chunked generation for long texts
	EnableChunking bool

	// ChunkSize in characters. Clamped to 1000-8000.
	ChunkSize int

	// ChunkOverlap in characters carried from the previous chunk
	ChunkOverlap int

	// MaxConcurrency bounds chunk tasks in flight. Clamped to 1-5.
	MaxConcurrency int

	// PreserveEquations repairs math notation cut at chunk boundaries
	PreserveEquations bool

	// BatchDelay is the pacing pause between chunk batches
	BatchDelay time.Duration

	// MaxChunkQuiz caps quiz questions per chunk
	MaxChunkQuiz int

	// MaxMergedQuiz caps the merged quiz list
	MaxMergedQuiz int

	// MaxImageSize in bytes accepted for processing
	MaxImageSize int64

	// SupportedFormats lists the decoder names accepted by validation
	SupportedFormats []string
}

// WithDefaults fills in default values and clamps ranges
func (p *Pipeline) WithDefaults() {
	if p.QualityThreshold <= 0 || p.QualityThreshold > 1 {
		p.QualityThreshold = 0.6
	}
	if p.MinTextLength <= 0 {
		p.MinTextLength = 10
	}
	if p.MaxQuizQuestions <= 0 {
		p.MaxQuizQuestions = 20
	}
	if p.DefaultQuizQuestions <= 0 {
		p.DefaultQuizQuestions = 5
	}
	if p.DefaultQuizQuestions > p.MaxQuizQuestions {
		p.DefaultQuizQuestions = p.MaxQuizQuestions
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = 4000
	}
	p.ChunkSize = clampInt(p.ChunkSize, 1000, 8000)
	if p.ChunkOverlap < 0 {
		p.ChunkOverlap = 0
	}
	if p.ChunkOverlap >= p.ChunkSize {
		p.ChunkOverlap = p.ChunkSize / 20
	}
	if p.MaxConcurrency == 0 {
		p.MaxConcurrency = 3
	}
	p.MaxConcurrency = clampInt(p.MaxConcurrency, 1, 5)
	if p.BatchDelay < 0 {
		p.BatchDelay = 0
	}
	if p.MaxChunkQuiz <= 0 {
		p.MaxChunkQuiz = 3
	}
	if p.MaxMergedQuiz <= 0 {
		p.MaxMergedQuiz = 15
	}
	if p.MaxImageSize <= 0 {
		p.MaxImageSize = 10 << 20
	}
	if len(p.SupportedFormats) == 0 {
		p.SupportedFormats = []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"}
	}
}

// DefaultPipeline returns the pipeline options with every default applied
func DefaultPipeline() Pipeline {
	p := Pipeline{
		EnableChunking:    true,
		PreserveEquations: true,
		ChunkOverlap:      200,
		BatchDelay:        time.Second,
	}
	p.WithDefaults()
	return p
}

// LLM configures the OpenAI-compatible text/vision service
type LLM struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	// MaxRetries is zero by default; each call gets one attempt
	MaxRetries int
}

// OCR configures the extraction backends
type OCR struct {
	// TesseractEnabled registers the local tesseract backend
	TesseractEnabled bool
	// TesseractLanguages are passed to tesseract as language hints
	TesseractLanguages []string
	// GoogleVisionEnabled registers the Cloud Vision backend; credentials come
	// from GOOGLE_APPLICATION_CREDENTIALS
	GoogleVisionEnabled bool
	// FallbackOrder lists backend roles tried after the preferred one
	FallbackOrder []string
}

// Storage configures where uploaded images live
type Storage struct {
	Dir       string
	GCSBucket string
	GCSPrefix string
}

// Cache configures the result cache
type Cache struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
}

// Config is the full worker configuration
type Config struct {
	HTTPAddr string
	// StandaloneAddr is the listen address of the embedded standalone server
	StandaloneAddr string
	LogMode        string
	LogLevel       string
	LogHashSalt    string
	ContentAPIURL  string
	DatabaseURL    string
	QueueName      string
	AppVersion     string
	ProcessTimeout time.Duration
	// WorkerConcurrency is the number of queued runs a worker executes at once
	WorkerConcurrency int
	// KeepUploads keeps images uploaded to /v1/study after processing
	KeepUploads bool

	Pipeline Pipeline
	LLM      LLM
	OCR      OCR
	Storage  Storage
	Cache    Cache
}

// Load reads configuration from the environment. Call godotenv.Load first
// to pick up a .env file.
func Load() Config {
	cfg := Config{
		HTTPAddr:          envString("WORKER_HTTP_ADDR", ":8081"),
		StandaloneAddr:    envString("PIPELINE_HTTP_ADDR", ":8080"),
		LogMode:           envString("LOG_MODE", "dev"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		LogHashSalt:       envString("LOG_HASH_SALT", ""),
		ContentAPIURL:     envString("CONTENT_API_URL", ""),
		DatabaseURL:       envString("DBOS_SYSTEM_DATABASE_URL", ""),
		QueueName:         envString("DBOS_QUEUE_NAME", "default"),
		AppVersion:        envString("DBOS_APPLICATION_VERSION", ""),
		ProcessTimeout:    envDuration("PROCESS_TIMEOUT", 5*time.Minute),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 4),
		KeepUploads:       envBool("KEEP_UPLOADS", false),
		Pipeline: Pipeline{
			QualityThreshold:     envFloat("QUALITY_THRESHOLD", 0.6),
			MinTextLength:        envInt("MIN_TEXT_LENGTH", 10),
			DefaultQuizQuestions: envInt("DEFAULT_QUIZ_QUESTIONS", 5),
			MaxQuizQuestions:     envInt("MAX_QUIZ_QUESTIONS", 20),
			EnableChunking:       envBool("ENABLE_CHUNKING", true),
			ChunkSize:            envInt("CHUNK_SIZE", 4000),
			ChunkOverlap:         envInt("CHUNK_OVERLAP", 200),
			MaxConcurrency:       envInt("MAX_CONCURRENCY", 3),
			PreserveEquations:    envBool("PRESERVE_EQUATIONS", true),
			BatchDelay:           envDuration("CHUNK_BATCH_DELAY", time.Second),
			MaxImageSize:         int64(envInt("MAX_IMAGE_SIZE", 10<<20)),
			SupportedFormats:     envList("SUPPORTED_IMAGE_FORMATS", nil),
		},
		LLM: LLM{
			APIKey:     envString("LLM_API_KEY", ""),
			BaseURL:    envString("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:      envString("LLM_MODEL", "gpt-4o-mini"),
			Timeout:    envDuration("LLM_TIMEOUT", 90*time.Second),
			MaxRetries: envInt("LLM_MAX_RETRIES", 0),
		},
		OCR: OCR{
			TesseractEnabled:    envBool("TESSERACT_ENABLED", true),
			TesseractLanguages:  envList("TESSERACT_LANGUAGES", []string{"eng"}),
			GoogleVisionEnabled: envBool("GOOGLE_VISION_ENABLED", envString("GOOGLE_APPLICATION_CREDENTIALS", "") != ""),
			FallbackOrder:       envList("OCR_FALLBACK_ORDER", []string{"handwriting_ocr", "general_ocr", "vision_llm"}),
		},
		Storage: Storage{
			Dir:       envString("STORAGE_DIR", "./dev-data"),
			GCSBucket: envString("GCS_BUCKET", ""),
			GCSPrefix: envString("GCS_PREFIX", "study-images/"),
		},
		Cache: Cache{
			RedisAddr:     envString("REDIS_ADDR", ""),
			RedisPassword: envString("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Prefix:        envString("REDIS_PREFIX", "study:"),
			TTL:           envDuration("RESULT_CACHE_TTL", 24*time.Hour),
		},
	}
	cfg.Pipeline.WithDefaults()
	return cfg
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
