package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUpload marks uploads refused for their type or size.
var ErrInvalidUpload = errors.New("invalid upload")

// AllowedContentTypes defines the allowed MIME types for lead images.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("%w: content type %q is not allowed", ErrInvalidUpload, contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("%w: file size must be greater than 0", ErrInvalidUpload)
	}
	if sizeBytes > s.maxFileSize {
		return fmt.Errorf("%w: file size %d bytes exceeds maximum allowed size of %d bytes", ErrInvalidUpload, sizeBytes, s.maxFileSize)
	}
	return nil
}
