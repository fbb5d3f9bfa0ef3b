package adapter

import (
	"context"
	"time"
)

// PresignedUpload is a short-lived URL the browser PUTs the file to.
type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStorage is the port for listing media.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedUpload, error)
	Delete(ctx context.Context, keys ...string) error
	// KeyFromURL maps a public media URL back to its object key; false when the
	// URL is not served by this storage.
	KeyFromURL(publicURL string) (string, bool)
}
