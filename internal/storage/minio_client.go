package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scan-service/internal/config"
)

// BlobStore is the object storage surface the scan pipeline needs: upload
// with an overwrite flag, read back, best-effort delete, and a publicly
// resolvable URL per key.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

// NewMinioClient initializes a MinIO client and ensures the bucket exists.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSSL,
	})
	if err != nil {
		return nil, err
	}
	// Ensure the bucket exists (create if not present)
	ctx := context.Background()
	exists, errBucket := minioClient.BucketExists(ctx, cfg.MinioBucket)
	if errBucket != nil {
		return nil, errBucket
	}
	if !exists {
		err = minioClient.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: ""})
		if err != nil {
			return nil, err
		}
		log.Printf("Created bucket %s\n", cfg.MinioBucket)
	}
	return minioClient, nil
}

// MinioStore implements BlobStore against a MinIO bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore wraps an initialized MinIO client. publicURL is the base used
// to build resolvable file URLs; when empty, the MinIO endpoint is used.
func NewMinioStore(client *minio.Client, cfg *config.Config) *MinioStore {
	base := cfg.MinioPublicURL
	if base == "" {
		scheme := "http"
		if cfg.MinioSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}
	return &MinioStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimRight(base, "/"),
	}
}

// ScanKey is the storage key layout for scan blobs: {patientId}/{type}.stl.
func ScanKey(patientID, scanType string) string {
	return fmt.Sprintf("%s/%s.stl", patientID, scanType)
}

// Upload writes the blob. Without overwrite, an existing object under the
// same key fails the call instead of being clobbered.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) (string, error) {
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", fmt.Errorf("object %s already exists", key)
		}
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

// Download reads the full blob into memory; decode needs the whole stream
// anyway.
func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// Remove deletes the blob. Callers on the replace path treat failure as
// non-fatal and only log it.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PublicURL returns the resolvable URL recorded on the Scan row.
func (s *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}
