// internal/storage/storage.go - Upload of finished containers to S3-compatible storage
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/config"
)

// ContentType is the media type stored with uploaded containers
const ContentType = "application/x-sqlite3"

// S3 is the subset of minio.Client used for uploads.
// Tests substitute a fake.
type S3 interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewClient connects to the configured endpoint
func NewClient(cfg config.StorageConfig, version string) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, fmt.Sprintf("invalid storage endpoint %s", cfg.Endpoint), err)
	}
	client.SetAppInfo("aoi-to-mbtiles", version)
	return client, nil
}

// Uploader puts files into one bucket under a key prefix
type Uploader struct {
	client S3
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewUploader creates an uploader for bucket and prefix
func NewUploader(client S3, bucket, prefix string, log zerolog.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log,
	}
}

// ObjectName returns the key a local file is stored under: {prefix}/{basename}
func (u *Uploader) ObjectName(filePath string) string {
	prefix := strings.Trim(u.prefix, "/")
	name := filepath.Base(filePath)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload stores filePath in the bucket and returns the object name
func (u *Uploader) Upload(ctx context.Context, filePath string) (string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeTransport, fmt.Sprintf("cannot reach bucket %s", u.bucket), err)
	}
	if !exists {
		return "", internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("bucket not found: %s", u.bucket), nil)
	}

	object := u.ObjectName(filePath)
	info, err := u.client.FPutObject(ctx, u.bucket, object, filePath, minio.PutObjectOptions{ContentType: ContentType})
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot upload %s", filePath), err)
	}

	u.log.Info().
		Str("bucket", u.bucket).
		Str("object", object).
		Int64("size", info.Size).
		Msg("container uploaded")

	return object, nil
}
