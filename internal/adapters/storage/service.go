// Package storage provides S3-compatible object storage for lead images.
package storage

import (
	"context"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned upload/download operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"file_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ImageStore defines the object storage operations the leads module uses.
type ImageStore interface {
	// GenerateUploadURL creates a presigned PUT URL for an image under
	// the uploader's folder. Returns the URL, the object key to submit with
	// the lead, and the expiry.
	GenerateUploadURL(ctx context.Context, uploaderID int64, fileName, contentType string, sizeBytes int64) (*PresignedURL, error)

	// PresignGet creates a time-limited read URL for a stored key.
	PresignGet(ctx context.Context, fileKey string) (string, error)

	// EnsureBucketExists creates the image bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketLeadImages() string
	IsMinIOEnabled() bool
}
