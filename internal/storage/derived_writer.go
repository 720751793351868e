package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

// DerivedWriter stores study artifacts as derived content in an in-process
// simple-content service
type DerivedWriter struct {
	service simplecontent.Service
}

// NewDerivedWriter creates a new derived content writer
func NewDerivedWriter(service simplecontent.Service) *DerivedWriter {
	return &DerivedWriter{
		service: service,
	}
}

// Variant names a derived type at a version, e.g. "study_result_v1"
func Variant(derivedType string, derivedVersion int) string {
	return fmt.Sprintf("%s_v%d", derivedType, derivedVersion)
}

// HasDerived checks if a derived output already exists for the given type/version
func (dw *DerivedWriter) HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error) {
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return false, fmt.Errorf("invalid content ID: %w", err)
	}

	derived, err := dw.service.ListDerivedContent(ctx,
		simplecontent.WithParentID(parentID),
		simplecontent.WithDerivationType(derivedType),
	)
	if err != nil {
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}

	variant := Variant(derivedType, derivedVersion)
	for _, d := range derived {
		if d.DerivationType == derivedType && d.Variant == variant {
			return true, nil
		}
	}

	return false, nil
}

// PutDerived uploads a derived output and returns its derived content ID
func (dw *DerivedWriter) PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error) {
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return "", fmt.Errorf("invalid content ID: %w", err)
	}

	variant := Variant(derivedType, derivedVersion)

	fileName := meta["file_name"]
	if fileName == "" {
		fileName = fmt.Sprintf("%s.json", variant)
	}

	derivedContent, err := dw.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:       parentID,
		DerivationType: derivedType,
		Variant:        variant,
		Reader:         r,
		FileName:       fileName,
		Tags:           []string{derivedType, variant},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload derived content: %w", err)
	}

	return derivedContent.ID.String(), nil
}
