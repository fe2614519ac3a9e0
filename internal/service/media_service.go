package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed image MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// MediaService turns uploaded images into opaque references that forms store
// in header_image, image and background_image fields.
type MediaService struct {
	storage  StorageProvider
	maxBytes int64
}

// NewMediaService creates a new MediaService.
func NewMediaService(storage StorageProvider, maxBytes int64) *MediaService {
	return &MediaService{storage: storage, maxBytes: maxBytes}
}

// SaveUpload validates and stores an image under a UUID name.
// Returns the reference to put into the form.
func (s *MediaService) SaveUpload(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, size, s.maxBytes)
	}

	ref, err := s.storage.Upload(ctx, uuid.New().String()+ext, io.LimitReader(r, s.maxBytes), size, contentType)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return ref, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
