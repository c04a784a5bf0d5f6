package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"voicewave/config"
	"voicewave/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var minioClient *minio.Client

// InitMinio initializes the MinIO client and ensures the bucket exists.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	logger.Info("MinIO client initialized",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return nil
}

// ObjectStore stores uploaded media and returns stable public URLs.
// The API persists only the returned URL.
type ObjectStore interface {
	Upload(ctx context.Context, prefix, originalName, contentType string, r io.Reader, size int64) (string, error)
	Remove(ctx context.Context, url string) error
}

// minioStore implements ObjectStore on MinIO.
type minioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore creates an ObjectStore backed by the shared MinIO client.
func NewMinioStore(cfg *config.Config) ObjectStore {
	return &minioStore{
		client:    minioClient,
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimSuffix(cfg.MinioPublicURL, "/"),
	}
}

// Upload streams the file under prefix/<uuid><ext> and returns its URL.
func (s *minioStore) Upload(ctx context.Context, prefix, originalName, contentType string, r io.Reader, size int64) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	objectName := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName), nil
}

// Remove deletes a stored object by its public URL. Unknown URLs are
// ignored so callers can treat removal as best-effort.
func (s *minioStore) Remove(ctx context.Context, url string) error {
	if s.client == nil || url == "" {
		return nil
	}

	base := fmt.Sprintf("%s/%s/", s.publicURL, s.bucket)
	if !strings.HasPrefix(url, base) {
		return nil
	}
	objectName := strings.TrimPrefix(url, base)

	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", objectName, err)
	}
	return nil
}
