package storage

import (
	"bitwise74/course-archive/config"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const minMultipartSize = 12 << 20

type S3Store struct {
	C      *s3.Client
	Bucket *string
}

// NewS3 works with AWS as well as R2 or any other S3 compatible store when an
// endpoint is set
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(cfg.Bucket)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Region = cfg.Region
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", cfg.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Store{
		C:      client,
		Bucket: bucket,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        s.Bucket,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	var err error
	if size > minMultipartSize {
		// The manager aborts the multipart upload by itself when ctx is cancelled
		uploader := manager.NewUploader(s.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = s.C.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload object to S3, %w", err)
	}

	zap.L().Debug("Object uploaded", zap.String("key", key), zap.Int64("size", size))
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}

		return false, fmt.Errorf("failed to check if object exists, %w", err)
	}

	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3, %w", err)
	}

	return nil
}

func (s *S3Store) PresignRead(ctx context.Context, method, key string, ttl time.Duration) (string, error) {
	p := s3.NewPresignClient(s.C, s3.WithPresignExpires(ttl))

	var (
		req *v4.PresignedHTTPRequest
		err error
	)

	switch method {
	case http.MethodGet:
		req, err = p.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: s.Bucket, Key: aws.String(key)})
	case http.MethodHead:
		req, err = p.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: s.Bucket, Key: aws.String(key)})
	default:
		return "", fmt.Errorf("can't presign %s requests", method)
	}
	if err != nil {
		return "", fmt.Errorf("failed to presign object url, %w", err)
	}

	return req.URL, nil
}
