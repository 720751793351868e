// Package preprocess applies deterministic image filters chosen from the
// issues reported by quality assessment.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// Filter names recorded on the state
const (
	FilterSharpen  = "sharpen"
	FilterContrast = "contrast"
	FilterDenoise  = "median_denoise"
)

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

const (
	contrastAlpha = 1.2
	contrastBeta  = 10
)

// Plan returns the filters selected by substring match on the issue
// descriptions, in application order.
func Plan(issues []string) []string {
	joined := strings.ToLower(strings.Join(issues, " "))
	var filters []string
	if strings.Contains(joined, "blur") {
		filters = append(filters, FilterSharpen)
	}
	if strings.Contains(joined, "contrast") {
		filters = append(filters, FilterContrast)
	}
	if strings.Contains(joined, "noise") {
		filters = append(filters, FilterDenoise)
	}
	return filters
}

// Apply decodes data, runs the filters selected by issues and re-encodes the
// result as PNG. It returns the names of the filters applied. When no filter
// matches the image is still normalized to PNG.
func Apply(data []byte, issues []string) ([]byte, []string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, fmt.Errorf("decode image: %w", err)
	}

	filters := Plan(issues)
	var out image.Image = img
	for _, f := range filters {
		switch f {
		case FilterSharpen:
			out = imaging.Convolve3x3(out, sharpenKernel, nil)
		case FilterContrast:
			out = imaging.AdjustFunc(out, scaleAbs)
		case FilterDenoise:
			out = Median3x3(out)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), filters, nil
}

// scaleAbs maps each color channel to saturate(alpha*v + beta)
func scaleAbs(c color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: saturate(contrastAlpha*float64(c.R) + contrastBeta),
		G: saturate(contrastAlpha*float64(c.G) + contrastBeta),
		B: saturate(contrastAlpha*float64(c.B) + contrastBeta),
		A: c.A,
	}
}

func saturate(v float64) uint8 {
	if v < 0 {
		v = -v
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Median3x3 replaces each channel value with the median of its 3x3
// neighbourhood. Edge pixels use replicated borders.
func Median3x3(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v >= hi {
			return hi - 1
		}
		return v
	}

	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			di := y*dst.Stride + x*4
			for ch := 0; ch < 4; ch++ {
				n := 0
				for dy := -1; dy <= 1; dy++ {
					row := clamp(y+dy, h) * src.Stride
					for dx := -1; dx <= 1; dx++ {
						window[n] = src.Pix[row+clamp(x+dx, w)*4+ch]
						n++
					}
				}
				s := window[:]
				sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
				dst.Pix[di+ch] = window[4]
			}
		}
	}
	return dst
}
