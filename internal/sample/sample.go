// Package sample renders small study-note images for smoke tests and demos.
package sample

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultLines is a short printed biology note
var DefaultLines = []string{
	"Photosynthesis converts light energy into chemical energy.",
	"The chloroplast contains chlorophyll which absorbs sunlight.",
	"6CO2 + 6H2O -> C6H12O6 + 6O2",
	"Glucose is stored as starch in plant cells.",
}

const (
	margin     = 20
	lineHeight = 20
	scale      = 2
)

// NoteImage renders lines as black text on white and returns PNG bytes. The
// glyphs are upscaled so OCR engines can read them.
func NoteImage(lines []string) ([]byte, error) {
	if len(lines) == 0 {
		lines = DefaultLines
	}
	face := basicfont.Face7x13

	width := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}
	width += 2 * margin
	height := 2*margin + len(lines)*lineHeight

	canvas := imaging.New(width, height, color.White)
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(margin, margin+(i+1)*lineHeight-6)
		d.DrawString(l)
	}

	out := imaging.Resize(canvas, width*scale, height*scale, imaging.NearestNeighbor)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode sample image: %w", err)
	}
	return buf.Bytes(), nil
}
