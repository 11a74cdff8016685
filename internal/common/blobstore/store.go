// Package blobstore abstracts the remote file store that holds the persisted
// datasets. Names are flat; backends map them onto object keys or files.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"procurement-harvester/internal/common/config"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
)

const csvContentType = "text/csv; charset=utf-8"

// Blob is the metadata of one stored file.
type Blob struct {
	ID       string
	Name     string
	Size     int64
	Modified time.Time
}

// Store is the remote store surface the merge step needs. Find returns
// (nil, nil) when no blob has the name. Failures are reported as
// STORE_DOWNLOAD_FAILED / STORE_UPLOAD_FAILED standard errors.
type Store interface {
	Find(ctx context.Context, name string) (*Blob, error)
	Download(ctx context.Context, id string) ([]byte, error)
	Create(ctx context.Context, name string, data []byte) (*Blob, error)
	Update(ctx context.Context, id string, data []byte) error
}

// New builds the backend selected by cfg.Backend. Bad settings or credentials
// are reported as apperrors.ErrConfig.
func New(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinIO(ctx, cfg.MinIO, log)
	case "drive":
		return NewDrive(ctx, cfg.Drive, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown store backend %q", cfg.Backend), nil)
	}
}
