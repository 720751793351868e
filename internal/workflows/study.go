package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tendant/simple-study-pipeline/internal/cache"
	"github.com/tendant/simple-study-pipeline/internal/engine"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/storage"
	"github.com/tendant/simple-study-pipeline/internal/study"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// ContentReader interface for reading content
type ContentReader interface {
	GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// DerivedWriter interface for writing derived content
type DerivedWriter interface {
	HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error)
	PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error)
}

// metadataReader is implemented by content readers that know the recorded
// size and mime type of a content
type metadataReader interface {
	GetMetadata(ctx context.Context, key string) (*storage.Metadata, error)
}

// StudyEngine runs the study pipeline on one image
type StudyEngine interface {
	Run(ctx context.Context, req engine.Request) study.ProcessingResult
	DefaultOptions() engine.Options
}

// StudyOption configures a StudyWorkflow
type StudyOption func(*StudyWorkflow)

// WithObjectStore lets requests name their image by object key
func WithObjectStore(s storage.Reader) StudyOption {
	return func(w *StudyWorkflow) { w.objects = s }
}

// WithResultCache reuses results for identical images and options
func WithResultCache(c *cache.Results) StudyOption {
	return func(w *StudyWorkflow) { w.cache = c }
}

// WithLogger sets the workflow logger
func WithLogger(l *logger.Logger) StudyOption {
	return func(w *StudyWorkflow) { w.log = l }
}

// WithTimeout bounds one engine run
func WithTimeout(d time.Duration) StudyOption {
	return func(w *StudyWorkflow) { w.timeout = d }
}

// WithMaxImageSize caps how many bytes are read from the source
func WithMaxImageSize(n int64) StudyOption {
	return func(w *StudyWorkflow) { w.maxImageSize = n }
}

// StudyWorkflow turns a stored image into study materials and stores the
// result as derived content of the source
type StudyWorkflow struct {
	contentReader ContentReader
	derivedWriter DerivedWriter
	engine        StudyEngine
	objects       storage.Reader
	cache         *cache.Results
	log           *logger.Logger
	timeout       time.Duration
	maxImageSize  int64
}

// NewStudyWorkflow creates a new study workflow
func NewStudyWorkflow(contentReader ContentReader, derivedWriter DerivedWriter, eng StudyEngine, opts ...StudyOption) *StudyWorkflow {
	w := &StudyWorkflow{
		contentReader: contentReader,
		derivedWriter: derivedWriter,
		engine:        eng,
		log:           logger.Nop(),
		maxImageSize:  10 << 20,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name
func (w *StudyWorkflow) Name() string {
	return "StudyWorkflow"
}

// Execute runs the study workflow
func (w *StudyWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	req := wctx.Request
	log := w.log.With("run_id", wctx.RunID, "content_id", req.ContentID, "object_key", req.ObjectKey)
	log.Info("starting study workflow")

	// Step 1: Validate request
	if err := w.validateRequest(&req); err != nil {
		log.Warn("validation failed", "error", err)
		return failed(fmt.Errorf("validation failed: %w", err)), err
	}

	derivedType := pipeline.DerivedTypeStudyResult
	derivedVersion := req.Versions[derivedType]
	if derivedVersion <= 0 {
		derivedVersion = 1
	}

	// Step 2: Skip if this version was already produced
	if req.ContentID != "" && w.derivedWriter != nil {
		hasDerived, err := w.derivedWriter.HasDerived(wctx.Ctx, req.ContentID, derivedType, derivedVersion)
		if err != nil {
			// Continue anyway - don't fail on check error
			log.Warn("failed to check derived content", "error", err)
		} else if hasDerived {
			log.Info("derived content already exists, skipping", "derived_type", derivedType, "version", derivedVersion)
			return &WorkflowResult{
				Success: true,
				Outputs: map[string]interface{}{
					"content_id":   req.ContentID,
					"derived_type": derivedType,
					"version":      derivedVersion,
					"skipped":      true,
				},
			}, nil
		}
	}

	// Step 3: Load the source image
	image, err := w.loadImage(wctx.Ctx, req, log)
	if errors.Is(err, ErrSourceNotFound) {
		log.Warn("source image not found")
		// Not retryable
		return failed(err), nil
	}
	if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) {
		log.Warn("source rejected", "error", err)
		return failed(err), nil
	}
	if err != nil {
		log.Error("failed to load source image", "error", err)
		return failed(fmt.Errorf("download failed: %w", err)), err
	}
	log.Info("source image loaded", "bytes", len(image))

	// Step 4: Run the study pipeline, reusing a cached result when possible
	opts := EngineOptions(w.engine.DefaultOptions(), req.Options)
	result, cached := w.run(wctx, image, opts, log)
	result.RunID = wctx.RunID

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return failed(fmt.Errorf("encode result: %w", err)), err
	}

	outputs := map[string]interface{}{
		"content_id":  req.ContentID,
		"object_key":  req.ObjectKey,
		"success":     result.Success,
		"cached":      cached,
		"result_json": string(resultJSON),
	}
	if result.Degraded {
		outputs["degraded"] = true
	}

	if !result.Success {
		msg := result.ErrorMessage
		if msg == "" {
			msg = "study processing did not succeed"
		}
		log.Warn("study run unsuccessful", "error", msg)
		return &WorkflowResult{
			Success: false,
			Error:   errors.New(msg),
			Message: msg,
			Outputs: outputs,
		}, nil
	}

	// Step 5: Write derived content. A degraded result is not stored so the
	// version stays open for a clean rerun.
	if result.Degraded {
		log.Warn("study result degraded, derived content not written", "warnings", result.Warnings)
	} else if req.ContentID != "" && w.derivedWriter != nil {
		derivedID, err := w.derivedWriter.PutDerived(wctx.Ctx, req.ContentID, derivedType, derivedVersion,
			bytes.NewReader(resultJSON), map[string]string{
				"file_name": fmt.Sprintf("%s_v%d.json", derivedType, derivedVersion),
				"mime_type": "application/json",
			})
		if err != nil {
			log.Error("failed to write derived content", "error", err)
			return failed(fmt.Errorf("derived write failed: %w", err)), err
		}
		outputs["derived_id"] = derivedID
		log.Info("derived content written", "derived_id", derivedID)

		if text := strings.TrimSpace(result.TextExtraction.Text); text != "" {
			textVersion := req.Versions[pipeline.DerivedTypeOCRText]
			if textVersion <= 0 {
				textVersion = 1
			}
			textID, err := w.derivedWriter.PutDerived(wctx.Ctx, req.ContentID, pipeline.DerivedTypeOCRText, textVersion,
				strings.NewReader(text), map[string]string{
					"file_name": fmt.Sprintf("%s_v%d.txt", pipeline.DerivedTypeOCRText, textVersion),
					"mime_type": "text/plain",
				})
			if err != nil {
				// the study result is already stored
				log.Warn("failed to write extracted text", "error", err)
			} else {
				outputs["text_derived_id"] = textID
			}
		}
	}

	log.Info("study workflow completed", "cached", cached, "degraded", result.Degraded, "quiz_questions", quizLen(result))
	return &WorkflowResult{Success: true, Outputs: outputs}, nil
}

func (w *StudyWorkflow) validateRequest(req *pipeline.ProcessRequest) error {
	if req.ContentID == "" && req.ObjectKey == "" {
		return fmt.Errorf("%w: content_id or object_key is required", ErrInvalidRequest)
	}
	if req.ContentID == "" && w.objects == nil {
		return fmt.Errorf("%w: object_key given but no object store configured", ErrInvalidRequest)
	}
	if req.ContentID != "" && w.contentReader == nil && (req.ObjectKey == "" || w.objects == nil) {
		return fmt.Errorf("%w: no content reader configured", ErrInvalidRequest)
	}
	if req.Options != nil && req.Options.QuizCount < 0 {
		return fmt.Errorf("%w: quiz_count must not be negative", ErrInvalidRequest)
	}
	return nil
}

// loadImage reads the image by object key when one is given, else by content ID
func (w *StudyWorkflow) loadImage(ctx context.Context, req pipeline.ProcessRequest, log *logger.Logger) ([]byte, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if req.ObjectKey != "" && w.objects != nil {
		rc, err = w.objects.GetReader(ctx, req.ObjectKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, req.ObjectKey)
		}
	} else {
		exists, existsErr := w.contentReader.Exists(ctx, req.ContentID)
		if existsErr != nil {
			return nil, fmt.Errorf("content check failed: %w", existsErr)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, req.ContentID)
		}
		if mr, ok := w.contentReader.(metadataReader); ok {
			meta, metaErr := mr.GetMetadata(ctx, req.ContentID)
			if metaErr != nil {
				log.Warn("content metadata unavailable", "error", metaErr)
			} else if checkErr := storage.CheckImage(meta, w.maxImageSize); checkErr != nil {
				return nil, fmt.Errorf("source %s: %w", req.ContentID, checkErr)
			}
		}
		rc, err = w.contentReader.GetReaderByContentID(ctx, req.ContentID)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// one extra byte lets validation report oversized images
	return io.ReadAll(io.LimitReader(rc, w.maxImageSize+1))
}

func (w *StudyWorkflow) run(wctx *WorkflowContext, image []byte, opts engine.Options, log *logger.Logger) (study.ProcessingResult, bool) {
	key, err := cache.Key(image, opts)
	if err != nil {
		log.Warn("cannot build cache key", "error", err)
	}
	if key != "" {
		if res, ok := w.cache.Get(wctx.Ctx, key); ok {
			log.Info("result served from cache")
			return res, true
		}
	}

	ctx := wctx.Ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	ref := wctx.Request.ContentID
	if ref == "" {
		ref = wctx.Request.ObjectKey
	}
	result := w.engine.Run(ctx, engine.Request{
		RunID:    wctx.RunID,
		ImageRef: ref,
		UserID:   wctx.Request.UserID,
		Image:    image,
		Options:  opts,
	})

	if key != "" {
		if err := w.cache.Put(wctx.Ctx, key, result); err != nil {
			log.Warn("failed to cache result", "error", err)
		}
	}
	return result, false
}

func failed(err error) *WorkflowResult {
	return &WorkflowResult{Success: false, Error: err, Message: err.Error()}
}

func quizLen(r study.ProcessingResult) int {
	if r.Quiz == nil {
		return 0
	}
	return len(r.Quiz.Questions)
}
