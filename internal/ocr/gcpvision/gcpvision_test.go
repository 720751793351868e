package gcpvision

import (
	"context"
	"testing"
	"time"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
)

type fakeAnnotator struct {
	resp *visionpb.BatchAnnotateImagesResponse
	req  *visionpb.BatchAnnotateImagesRequest
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, nil
}

func (f *fakeAnnotator) Close() error { return nil }

func backendWith(resp *visionpb.BatchAnnotateImagesResponse) (*Backend, *fakeAnnotator) {
	fa := &fakeAnnotator{resp: resp}
	return &Backend{client: fa, timeout: time.Second}, fa
}

func TestExtract_FullTextAnnotation(t *testing.T) {
	b, fa := backendWith(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text:  "Newton's second law\nF = ma\n",
				Pages: []*visionpb.Page{{Confidence: 0.96}},
			},
		}},
	})

	res, err := b.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Newton's second law\nF = ma", res.Text)
	assert.InDelta(t, 0.96, res.Confidence, 1e-6)
	assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, fa.req.Requests[0].Features[0].Type)
}

func TestExtract_DefaultConfidenceAndEmpty(t *testing.T) {
	b, _ := backendWith(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			TextAnnotations: []*visionpb.EntityAnnotation{{Description: "hello"}},
		}},
	})
	res, err := b.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, defaultConfidence, res.Confidence)

	b, _ = backendWith(&visionpb.BatchAnnotateImagesResponse{})
	res, err = b.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestExtract_AnnotateError(t *testing.T) {
	b, _ := backendWith(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{Error: &status.Status{Message: "quota"}}},
	})
	_, err := b.Extract(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}
