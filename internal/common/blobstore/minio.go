// internal/common/blobstore/minio.go
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"procurement-harvester/internal/common/config"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO stores datasets as objects in one bucket of an S3-compatible service.
// Blob IDs are object keys.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
	logger logger.Logger
}

func NewMinIO(ctx context.Context, cfg config.MinIOConfig, log logger.Logger) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperrors.NewConfigError("minio client could not be created", err)
	}

	m := &MinIO{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: log.WithFields(map[string]interface{}{"store": "minio", "bucket": cfg.Bucket}),
	}
	if err := m.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("bucket created", nil)
	return nil
}

func (m *MinIO) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *MinIO) Find(ctx context.Context, name string) (*Blob, error) {
	key := m.key(name)
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, apperrors.NewStoreDownloadError(name, err)
	}
	return &Blob{ID: key, Name: name, Size: info.Size, Modified: info.LastModified}, nil
}

func (m *MinIO) Download(ctx context.Context, id string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.NewStoreDownloadError(id, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperrors.NewStoreDownloadError(id, err)
	}
	return data, nil
}

func (m *MinIO) Create(ctx context.Context, name string, data []byte) (*Blob, error) {
	key := m.key(name)
	info, err := m.put(ctx, key, data)
	if err != nil {
		return nil, err
	}
	return &Blob{ID: key, Name: name, Size: info.Size, Modified: info.LastModified}, nil
}

// Update overwrites the object; S3 has no separate replace call.
func (m *MinIO) Update(ctx context.Context, id string, data []byte) error {
	_, err := m.put(ctx, id, data)
	return err
}

func (m *MinIO) put(ctx context.Context, key string, data []byte) (minio.UploadInfo, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: csvContentType})
	if err != nil {
		return info, apperrors.NewStoreUploadError(key, retryableS3(err), err)
	}
	m.logger.Debug("object written", map[string]interface{}{"key": key, "bytes": len(data)})
	return info, nil
}

func retryableS3(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == 0:
		return true
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true
	case resp.Code == "SlowDown", resp.Code == "RequestTimeout":
		return true
	}
	return false
}
