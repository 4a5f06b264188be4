package storage

import (
	"bitwise74/course-archive/config"
	"context"
	"fmt"
)

// Open returns the backend selected by storage.type
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(ctx, cfg.S3)
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
