// Package ocr runs text extraction through an ordered chain of
// interchangeable backends, falling through on errors and empty output.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

var (
	// ErrNoText is returned by the chain when every backend failed or returned blank text
	ErrNoText = errors.New("no backend produced text")

	// ErrEmptyImage is returned for zero-length input
	ErrEmptyImage = errors.New("empty image")
)

// DefaultOrder is the fallback order tried after the preferred backend
var DefaultOrder = []study.Tool{study.ToolHandwritingOCR, study.ToolGeneralOCR, study.ToolVisionLLM}

// Result is what a backend extracted
type Result struct {
	Text       string
	Confidence float64
}

// Backend extracts text from image bytes
type Backend interface {
	Name() string
	Extract(ctx context.Context, image []byte) (Result, error)
}

// Attempt records one backend invocation
type Attempt struct {
	Tool       study.Tool    `json:"tool"`
	Backend    string        `json:"backend"`
	Confidence float64       `json:"confidence"`
	Chars      int           `json:"chars"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Extraction is the chain outcome. Tool and Backend name the attempt that succeeded.
type Extraction struct {
	Text       string
	Confidence float64
	Tool       study.Tool
	Backend    string
	Attempts   []Attempt
}

// Chain tries registered backends in order
type Chain struct {
	backends map[study.Tool]Backend
	order    []study.Tool
	log      *logger.Logger
	metrics  *metrics.Recorder
}

// Option configures a Chain
type Option func(*Chain)

// WithLogger sets the chain logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Chain) { c.log = l }
}

// WithMetrics records attempts on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Chain) { c.metrics = r }
}

// WithOrder overrides the fallback order
func WithOrder(order []study.Tool) Option {
	return func(c *Chain) {
		if len(order) > 0 {
			c.order = append([]study.Tool(nil), order...)
		}
	}
}

// NewChain creates an empty chain. Backends that are not configured are
// simply never registered.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		backends: make(map[study.Tool]Backend),
		order:    append([]study.Tool(nil), DefaultOrder...),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds a backend to a tool role, replacing any previous one
func (c *Chain) Register(tool study.Tool, b Backend) {
	if b == nil {
		delete(c.backends, tool)
		return
	}
	c.backends[tool] = b
}

// Has reports whether a backend is registered for tool
func (c *Chain) Has(tool study.Tool) bool {
	_, ok := c.backends[tool]
	return ok
}

// Plan returns the tools tried for a preferred tool: preferred first, then the
// fallback order, without duplicates.
func (c *Chain) Plan(preferred study.Tool) []study.Tool {
	plan := make([]study.Tool, 0, len(c.order)+1)
	seen := make(map[study.Tool]bool)
	add := func(t study.Tool) {
		if t == "" || t == study.ToolNone || seen[t] {
			return
		}
		seen[t] = true
		plan = append(plan, t)
	}
	add(preferred)
	for _, t := range c.order {
		add(t)
	}
	return plan
}

// Extract walks the plan until a backend returns non-blank text. The returned
// Extraction always carries the attempts made, also on error.
func (c *Chain) Extract(ctx context.Context, image []byte, preferred study.Tool) (Extraction, error) {
	out := Extraction{Tool: study.ToolNone}
	if len(image) == 0 {
		return out, ErrEmptyImage
	}

	tried := make(map[string]bool)
	for _, tool := range c.Plan(preferred) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		b, ok := c.backends[tool]
		if !ok {
			c.log.Debug("backend not configured, skipping", "tool", tool)
			continue
		}
		// one engine may serve several roles
		if tried[b.Name()] {
			continue
		}
		tried[b.Name()] = true

		attempt, res := c.try(ctx, tool, b, image)
		out.Attempts = append(out.Attempts, attempt)
		c.metrics.BackendAttempt(b.Name(), attempt.Error == "")
		if attempt.Error != "" {
			c.log.Warn("extraction backend failed", "tool", tool, "backend", b.Name(), "error", attempt.Error)
			continue
		}

		out.Text = res.Text
		out.Confidence = study.Clamp01(res.Confidence)
		out.Tool = tool
		out.Backend = b.Name()
		if tool != preferred {
			c.log.Info("extraction fell back", "preferred", preferred, "used", tool, "backend", b.Name())
		}
		return out, nil
	}
	return out, ErrNoText
}

func (c *Chain) try(ctx context.Context, tool study.Tool, b Backend, image []byte) (a Attempt, res Result) {
	a = Attempt{Tool: tool, Backend: b.Name()}
	start := time.Now()
	defer func() {
		a.Duration = time.Since(start)
		if r := recover(); r != nil {
			a.Error = fmt.Sprintf("panic: %v", r)
			res = Result{}
		}
	}()

	res, err := b.Extract(ctx, image)
	switch {
	case err != nil:
		a.Error = err.Error()
	case strings.TrimSpace(res.Text) == "":
		a.Error = "empty result"
	default:
		res.Text = strings.TrimSpace(res.Text)
		a.Confidence = study.Clamp01(res.Confidence)
		a.Chars = len([]rune(res.Text))
	}
	return a, res
}

// Preview extracts a short text sample with the OCR engines only, skipping the
// vision model. Failures yield an empty preview.
func (c *Chain) Preview(ctx context.Context, image []byte, limit int) string {
	tried := make(map[string]bool)
	for _, tool := range c.order {
		if tool == study.ToolVisionLLM {
			continue
		}
		b, ok := c.backends[tool]
		if !ok || tried[b.Name()] {
			continue
		}
		tried[b.Name()] = true
		a, res := c.try(ctx, tool, b, image)
		if a.Error != "" {
			continue
		}
		if r := []rune(res.Text); limit > 0 && len(r) > limit {
			return string(r[:limit])
		}
		return res.Text
	}
	return ""
}
