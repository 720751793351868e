// Package tesseract is a local OCR backend using the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/tendant/simple-study-pipeline/internal/ocr"
)

// client is the subset of *gosseract.Client used here
type client interface {
	SetImageFromBytes([]byte) error
	SetLanguage(...string) error
	Text() (string, error)
	GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// Engine implements ocr.Backend with Tesseract
type Engine struct {
	languages     []string
	clientFactory func() client
}

// New constructs a Tesseract-backed backend
func New(languages ...string) *Engine {
	return &Engine{
		languages:     languages,
		clientFactory: func() client { return gosseract.NewClient() },
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Extract runs OCR on the image. Confidence is the mean word confidence.
func (e *Engine) Extract(ctx context.Context, image []byte) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Result{
		Text:       strings.TrimSpace(text),
		Confidence: averageConfidence(c),
	}, nil
}

func averageConfidence(c client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
