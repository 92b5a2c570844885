// Package storage persists task artifacts under their storage keys, either
// on the local filesystem or in an S3-compatible bucket (including R2).
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"dubflow/internal/config"
)

// Service stores and retrieves artifacts by key.
type Service interface {
	// Provider names the backing implementation ("local" or "s3").
	Provider() string
	Upload(ctx context.Context, key string, body io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	// URL resolves a key to a location a user can fetch: a public or
	// presigned URL for object storage, a file path for local storage.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// FromConfig selects the storage backend named by the configuration.
func FromConfig(cfg *config.Config) (Service, error) {
	switch cfg.Storage.Provider {
	case "local", "":
		return NewLocal(cfg.Paths.WorkspaceDir)
	case "s3":
		return NewS3(cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// UploadFile is a convenience wrapper for uploading from a local path.
func UploadFile(ctx context.Context, svc Service, key, path string) error {
	f, err := openFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return svc.Upload(ctx, key, f)
}
