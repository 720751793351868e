package sample

import (
	"bytes"
	"image"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteImage(t *testing.T) {
	data, err := NoteImage([]string{"Mitosis", "has four phases"})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 2*(2*margin+2*lineHeight), cfg.Height)
	assert.Greater(t, cfg.Width, 2*2*margin)
}

func TestNoteImage_DefaultLines(t *testing.T) {
	data, err := NoteImage(nil)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// some ink must land on the canvas
	dark := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}
