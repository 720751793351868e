// Package gcpvision is a general OCR backend backed by Google Cloud Vision
// document text detection.
package gcpvision

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/tendant/simple-study-pipeline/internal/ocr"
)

// defaultConfidence is reported when the API returns no page confidence
const defaultConfidence = 0.9

type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Backend implements ocr.Backend
type Backend struct {
	client  annotator
	timeout time.Duration
}

// New dials Cloud Vision. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS) unless options say otherwise.
func New(ctx context.Context, opts ...option.ClientOption) (*Backend, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Backend{client: c, timeout: 60 * time.Second}, nil
}

func (b *Backend) Name() string { return "google_vision" }

func (b *Backend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Extract runs DOCUMENT_TEXT_DETECTION on the image
func (b *Backend) Extract(ctx context.Context, image []byte) (ocr.Result, error) {
	if len(image) == 0 {
		return ocr.Result{}, ocr.ErrEmptyImage
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := b.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return ocr.Result{}, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return ocr.Result{}, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	if fta := r0.FullTextAnnotation; fta != nil && strings.TrimSpace(fta.Text) != "" {
		return ocr.Result{Text: strings.TrimSpace(fta.Text), Confidence: pageConfidence(fta.Pages)}, nil
	}
	// plain TEXT_DETECTION style answer
	if len(r0.TextAnnotations) > 0 && r0.TextAnnotations[0] != nil {
		return ocr.Result{Text: strings.TrimSpace(r0.TextAnnotations[0].Description), Confidence: defaultConfidence}, nil
	}
	return ocr.Result{}, nil
}

func pageConfidence(pages []*visionpb.Page) float64 {
	var sum float64
	n := 0
	for _, p := range pages {
		if p == nil || p.Confidence <= 0 {
			continue
		}
		sum += float64(p.Confidence)
		n++
	}
	if n == 0 {
		return defaultConfidence
	}
	return sum / float64(n)
}
