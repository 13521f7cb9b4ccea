// internal/storage/storage_test.go - Unit tests for container upload
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/valpere/aoi_to_mbtiles/internal"
)

type FakeS3 struct {
	buckets map[string]bool
	data    map[string][]byte
	types   map[string]string
	err     error
}

func NewFakeS3(buckets ...string) *FakeS3 {
	fake := &FakeS3{
		buckets: make(map[string]bool),
		data:    make(map[string][]byte),
		types:   make(map[string]string),
	}
	for _, b := range buckets {
		fake.buckets[b] = true
	}
	return fake
}

func (s3 *FakeS3) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if s3.err != nil {
		return false, s3.err
	}
	return s3.buckets[bucketName], nil
}

func (s3 *FakeS3) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	info := minio.UploadInfo{}
	if !s3.buckets[bucketName] {
		return info, fmt.Errorf("unexpected bucket %v", bucketName)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return info, err
	}

	key := bucketName + "/" + objectName
	s3.data[key] = data
	s3.types[key] = opts.ContentType
	info.Size = int64(len(data))
	return info, nil
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{"no prefix", "", "/tmp/out/area_osm.mbtiles", "area_osm.mbtiles"},
		{"prefix", "tilesets", "/tmp/out/area_osm.mbtiles", "tilesets/area_osm.mbtiles"},
		{"slashes trimmed", "/tilesets/2024/", "area.mbtiles", "tilesets/2024/area.mbtiles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUploader(NewFakeS3(), "bucket", tt.prefix, zerolog.Nop())
			if got := u.ObjectName(tt.path); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area_osm.mbtiles")
	if err := os.WriteFile(path, []byte("SQLite format 3\x00"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fake := NewFakeS3("tiles")
	u := NewUploader(fake, "tiles", "sets", zerolog.Nop())

	object, err := u.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if object != "sets/area_osm.mbtiles" {
		t.Errorf("Expected object sets/area_osm.mbtiles, got %s", object)
	}
	if got := string(fake.data["tiles/sets/area_osm.mbtiles"]); got != "SQLite format 3\x00" {
		t.Errorf("Unexpected uploaded content %q", got)
	}
	if got := fake.types["tiles/sets/area_osm.mbtiles"]; got != ContentType {
		t.Errorf("Expected content type %s, got %s", ContentType, got)
	}
}

func TestUploadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.mbtiles")
	_ = os.WriteFile(path, []byte("x"), 0o644)

	unreachable := NewFakeS3("tiles")
	unreachable.err = errors.New("connection refused")

	tests := []struct {
		name   string
		client *FakeS3
		bucket string
		file   string
		code   string
	}{
		{"missing bucket", NewFakeS3("other"), "tiles", path, internal.ErrorCodeNotFound},
		{"unreachable", unreachable, "tiles", path, internal.ErrorCodeTransport},
		{"missing file", NewFakeS3("tiles"), "tiles", filepath.Join(t.TempDir(), "none.mbtiles"), internal.ErrorCodeStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUploader(tt.client, tt.bucket, "", zerolog.Nop())
			_, err := u.Upload(context.Background(), tt.file)
			if !internal.IsCode(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}
