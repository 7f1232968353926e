package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioConfig configures an S3-compatible mirror.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Logger    *zerolog.Logger
}

// MinioMirror uploads artifacts to a bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

// NewMinioMirror builds the client and makes sure the bucket exists.
func NewMinioMirror(ctx context.Context, cfg MinioConfig) (*MinioMirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio mirror: bucket is required")
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("mirror bucket created")
	}
	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("artifact mirror ready")
	return &MinioMirror{client: client, bucket: cfg.Bucket, log: log}, nil
}

func (m *MinioMirror) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", m.bucket, key, err)
	}
	m.log.Debug().Str("bucket", m.bucket).Str("key", key).Int("bytes", len(data)).Msg("artifact mirrored")
	return nil
}
