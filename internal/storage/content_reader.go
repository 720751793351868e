package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

var (
	// ErrNotImage is returned when stored content declares a non-image type
	ErrNotImage = errors.New("content is not an image")

	// ErrImageTooLarge is returned when stored content exceeds the image size limit
	ErrImageTooLarge = errors.New("content exceeds image size limit")
)

// ContentReader reads source images from an in-process simple-content service
type ContentReader struct {
	service simplecontent.Service
}

// NewContentReader wraps an embedded simple-content service
func NewContentReader(service simplecontent.Service) *ContentReader {
	return &ContentReader{service: service}
}

func parseContentID(contentID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(contentID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid content ID %q: %w", contentID, err)
	}
	return id, nil
}

// GetReaderByContentID opens the original upload of a content
func (cr *ContentReader) GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error) {
	id, err := parseContentID(contentID)
	if err != nil {
		return nil, err
	}
	rc, err := cr.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("download content %s: %w", id, err)
	}
	return rc, nil
}

// GetReader implements Reader; key is a content ID
func (cr *ContentReader) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return cr.GetReaderByContentID(ctx, key)
}

// Exists reports whether the content is registered. The service does not
// type its lookup errors, so any failure counts as missing.
func (cr *ContentReader) Exists(ctx context.Context, key string) (bool, error) {
	id, err := parseContentID(key)
	if err != nil {
		return false, err
	}
	if _, err := cr.service.GetContent(ctx, id); err != nil {
		return false, nil
	}
	return true, nil
}

// GetMetadata returns the recorded upload size and mime type
func (cr *ContentReader) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	id, err := parseContentID(key)
	if err != nil {
		return nil, err
	}
	details, err := cr.service.GetContentDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("content details %s: %w", id, err)
	}
	return &Metadata{Size: details.FileSize, ContentType: details.MimeType}, nil
}

// CheckImage rejects content whose recorded metadata rules it out as a study
// image. A missing or generic mime type and an unknown size pass; image
// decoding catches the rest.
func CheckImage(meta *Metadata, maxSize int64) error {
	if meta == nil {
		return nil
	}
	if maxSize > 0 && meta.Size > maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, meta.Size, maxSize)
	}

	ct := strings.TrimSpace(meta.ContentType)
	if ct == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(ct)
	}
	if mt == "application/octet-stream" || strings.HasPrefix(mt, "image/") {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotImage, mt)
}
