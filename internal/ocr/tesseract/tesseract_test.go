package tesseract

import (
	"context"
	"errors"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text      string
	textErr   error
	boxes     []gosseract.BoundingBox
	languages []string
	closed    bool
}

func (f *fakeClient) SetImageFromBytes([]byte) error { return nil }
func (f *fakeClient) SetLanguage(l ...string) error  { f.languages = l; return nil }
func (f *fakeClient) Text() (string, error)          { return f.text, f.textErr }
func (f *fakeClient) GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	return f.boxes, nil
}
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestExtract_AveragesWordConfidence(t *testing.T) {
	fc := &fakeClient{
		text:  "  Photosynthesis converts light  \n",
		boxes: []gosseract.BoundingBox{{Word: "Photosynthesis", Confidence: 90}, {Word: "converts", Confidence: 70}},
	}
	e := New("eng")
	e.clientFactory = func() client { return fc }

	res, err := e.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, []string{"eng"}, fc.languages)
	assert.True(t, fc.closed)
}

func TestExtract_PropagatesErrors(t *testing.T) {
	fc := &fakeClient{textErr: errors.New("tessdata missing")}
	e := New()
	e.clientFactory = func() client { return fc }

	_, err := e.Extract(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tessdata missing")
	assert.True(t, fc.closed)
}
