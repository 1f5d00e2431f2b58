package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/argestone/marble-site/backend/internal/config"
)

// s3UploadTimeout bounds each mirrored upload.
const s3UploadTimeout = 30 * time.Second

// S3Mirror replicates snapshots to an S3-compatible bucket as an off-host
// copy of the catalog history.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror builds a mirror from backup configuration. Returns nil when no
// bucket is configured, which disables mirroring.
func NewS3Mirror(cfg config.BackupConfig) *S3Mirror {
	if cfg.S3Bucket == "" {
		return nil
	}

	opts := s3.Options{
		Region: cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		),
	}
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		// Path-style addressing for MinIO-compatible endpoints.
		opts.UsePathStyle = true
	}

	return &S3Mirror{
		client: s3.New(opts),
		bucket: cfg.S3Bucket,
		prefix: "catalog-backups/",
	}
}

// Upload stores a snapshot's bytes under the mirror prefix.
func (m *S3Mirror) Upload(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s3UploadTimeout)
	defer cancel()

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.prefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to s3: %w", err)
	}
	return nil
}
