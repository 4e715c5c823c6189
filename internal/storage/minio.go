package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

const bucketSetupTimeout = 30 * time.Second

// MinioStore writes attachments to an S3 compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = bucketSetupTimeout
	err = backoff.Retry(func() error {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			logger.Warn("minio bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
			return err
		}
		if exists {
			return nil
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
		logger.Info("created attachment bucket", zap.String("bucket", cfg.Bucket))
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("prepare bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("connected to minio", zap.String("endpoint", cfg.Endpoint))
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, upload Upload) (domain.Attachment, error) {
	key := objectKey(upload.FileName)
	contentType := contentTypeOrDefault(upload.ContentType)

	info, err := s.client.PutObject(ctx, s.bucket, key, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: %w", upload.FileName, err)
	}

	return domain.Attachment{
		Key:         key,
		FileName:    upload.FileName,
		ContentType: contentType,
		SizeBytes:   info.Size,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
