package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
)

// BinaryStorage stores artifacts and returns a URL they can be fetched from.
type BinaryStorage interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Upload stores data under objectName and returns its public URL.
func (s *MinioService) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return s.GetPublicURL(objectName), nil
}

// GetPublicURL returns a public URL for the object (if bucket policy allows)
func (s *MinioService) GetPublicURL(objectName string) string {
	if s.config.PublicURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.PublicURL, "/"), s.bucket, objectName)
	}
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}

// signaturePreviewObject and signedDocumentObject name the artifacts a record
// produces in the bucket.
func signaturePreviewObject(recordID string, at time.Time, contentType string) string {
	return fmt.Sprintf("records/%s/signature-preview-%d.%s", recordID, at.UnixNano(), imageExtension(contentType))
}

// imageExtension maps an image content type to a file extension. Unknown
// subtypes keep their letters and digits; anything unusable becomes "img".
func imageExtension(contentType string) string {
	sub := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(contentType, "image/")))
	if i := strings.IndexAny(sub, ";+"); i >= 0 {
		sub = sub[:i]
	}
	switch sub {
	case "jpeg", "pjpeg":
		return "jpg"
	case "":
		return "img"
	}
	ext := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, sub)
	if ext == "" {
		return "img"
	}
	return ext
}

func signedDocumentObject(recordID, slug string, version int) string {
	return fmt.Sprintf("records/%s/%s-v%d.pdf", recordID, slug, version)
}
