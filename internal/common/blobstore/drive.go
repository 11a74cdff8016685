// internal/common/blobstore/drive.go
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"procurement-harvester/internal/common/config"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive stores datasets as files in Google Drive, optionally inside one folder.
// Blob IDs are Drive file ids.
type Drive struct {
	service  *drive.Service
	folderID string
	logger   logger.Logger
}

// NewDrive authenticates with the service-account JSON in cfg.CredentialsJSON.
func NewDrive(ctx context.Context, cfg config.DriveConfig, log logger.Logger) (*Drive, error) {
	creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), drive.DriveScope)
	if err != nil {
		return nil, apperrors.NewConfigError("drive credentials are not valid service-account JSON", err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, apperrors.NewConfigError("drive service could not be created", err)
	}
	return NewDriveWithService(svc, cfg.FolderID, log), nil
}

func NewDriveWithService(svc *drive.Service, folderID string, log logger.Logger) *Drive {
	return &Drive{
		service:  svc,
		folderID: folderID,
		logger:   log.WithFields(map[string]interface{}{"store": "drive"}),
	}
}

func (d *Drive) Find(ctx context.Context, name string) (*Blob, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if d.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(d.folderID))
	}

	list, err := d.service.Files.List().
		Q(q).
		Fields("files(id, name, size, modifiedTime)").
		OrderBy("modifiedTime desc").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewStoreDownloadError(name, err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	if len(list.Files) > 1 {
		d.logger.Warn("several files share a dataset name, using the newest", map[string]interface{}{
			"name":  name,
			"count": len(list.Files),
		})
	}
	return toBlob(list.Files[0]), nil
}

func (d *Drive) Download(ctx context.Context, id string) ([]byte, error) {
	resp, err := d.service.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, apperrors.NewStoreDownloadError(id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewStoreDownloadError(id, err)
	}
	return data, nil
}

func (d *Drive) Create(ctx context.Context, name string, data []byte) (*Blob, error) {
	meta := &drive.File{Name: name, MimeType: "text/csv"}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	f, err := d.service.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(csvContentType)).
		Fields("id, name, size, modifiedTime").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewStoreUploadError(name, retryableGoogle(err), err)
	}
	d.logger.Info("file created", map[string]interface{}{"name": name, "fileId": f.Id, "bytes": len(data)})
	return toBlob(f), nil
}

func (d *Drive) Update(ctx context.Context, id string, data []byte) error {
	_, err := d.service.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(csvContentType)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return apperrors.NewStoreUploadError(id, retryableGoogle(err), err)
	}
	d.logger.Debug("file updated", map[string]interface{}{"fileId": id, "bytes": len(data)})
	return nil
}

func toBlob(f *drive.File) *Blob {
	b := &Blob{ID: f.Id, Name: f.Name, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		b.Modified = t
	}
	return b
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func retryableGoogle(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return true
	}
	if gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500 {
		return true
	}
	for _, e := range gerr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
