package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyImage        = errors.New("empty image")
	ErrImageTooLarge     = errors.New("image too large for processing")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Info describes a decodable image
type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// Inspect checks that data is a decodable image in one of the allowed
// formats and no larger than maxBytes (0 disables the size check).
func Inspect(data []byte, maxBytes int64, allowed []string) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmptyImage
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Info{}, ErrImageTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if len(allowed) > 0 && !contains(allowed, format) {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) || (strings.EqualFold(s, "jpg") && v == "jpeg") {
			return true
		}
	}
	return false
}
