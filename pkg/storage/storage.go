package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"github.com/tutorlink/tutorlink-api/pkg/retry"
	"go.uber.org/zap"
)

// Upload constraints enforced at the transport boundary before any upload
const (
	MaxAttachmentSize        = 10 * 1024 * 1024 // 10MB per file
	MaxAttachmentsPerRequest = 5
)

// allowedMimeTypes is the attachment allow-list: images, PDF, Word documents,
// plain text.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

// ObjectStorage is an S3-compatible object storage client for help request
// attachments.
type ObjectStorage struct {
	s3Client   *s3.Client
	bucketName string
	endpoint   string
}

// NewObjectStorage creates a new object storage client using the S3 SDK
func NewObjectStorage(accessKeyID, secretAccessKey, bucketName, endpoint, region string) (*ObjectStorage, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if region == "" {
		region = "us-east-1"
	}

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token not needed
		),
	})

	logger.Info("Object storage client initialized",
		zap.String("bucket", bucketName),
		zap.String("endpoint", endpoint),
		zap.String("region", region),
	)

	return &ObjectStorage{
		s3Client:   s3Client,
		bucketName: bucketName,
		endpoint:   endpoint,
	}, nil
}

// Upload stores an attachment and returns its public URL. Transient
// storage failures are retried with backoff.
func (s *ObjectStorage) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	start := time.Now()
	operation := "uploadAttachment"

	err := retry.Do(ctx, retry.StorageConfig(), operation, func() error {
		_, putErr := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		return putErr
	})

	duration := metrics.MeasureDuration(start)

	if err != nil {
		metrics.StorageRequestDuration.WithLabelValues(operation, "error").Observe(duration)
		metrics.StorageRequestTotal.WithLabelValues(operation, "error").Inc()
		logger.LogAPICall("object_storage", operation, "error", duration,
			zap.Error(err),
			zap.String("key", key),
		)
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	metrics.StorageRequestDuration.WithLabelValues(operation, "success").Observe(duration)
	metrics.StorageRequestTotal.WithLabelValues(operation, "success").Inc()
	logger.LogAPICall("object_storage", operation, "success", duration,
		zap.String("key", key),
		zap.Int("size_bytes", len(data)),
	)

	// Format: {endpoint}/{bucket}/{key}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucketName, key), nil
}

// ValidateMimeType checks the content type against the attachment allow-list
func ValidateMimeType(contentType string) error {
	// Strip parameters like "; charset=utf-8"
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	if !allowedMimeTypes[mediaType] {
		return fmt.Errorf("file type %s is not allowed", contentType)
	}
	return nil
}

// ValidateSize checks the attachment size limits
func ValidateSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file is empty")
	}
	if sizeBytes > MaxAttachmentSize {
		return fmt.Errorf("file too large: %d bytes (max %d bytes)", sizeBytes, MaxAttachmentSize)
	}
	return nil
}
