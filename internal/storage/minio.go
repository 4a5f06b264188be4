package storage

import (
	"bitwise74/course-archive/config"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOStore struct {
	c      *minio.Client
	bucket string
}

// NewMinIO connects to the MinIO server and creates the bucket if it's missing
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client, %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence, %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket, %w", err)
		}
	}

	return &MinIOStore{
		c:      client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.c.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to MinIO, %w", err)
	}

	return nil
}

func (s *MinIOStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.c.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat object, %w", err)
	}

	return true, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.c.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object from MinIO, %w", err)
	}

	return nil
}

func (s *MinIOStore) PresignRead(ctx context.Context, method, key string, ttl time.Duration) (string, error) {
	var (
		u   *url.URL
		err error
	)

	switch method {
	case http.MethodGet:
		u, err = s.c.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	case http.MethodHead:
		u, err = s.c.PresignedHeadObject(ctx, s.bucket, key, ttl, url.Values{})
	default:
		return "", fmt.Errorf("can't presign %s requests", method)
	}
	if err != nil {
		return "", fmt.Errorf("failed to presign object url, %w", err)
	}

	return u.String(), nil
}
