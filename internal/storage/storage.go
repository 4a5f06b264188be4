// Package storage contains the object store backends the upload relay
// writes to
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	// Put writes size bytes from body under key. Implementations must stop and
	// return an error once ctx is done so a severed upload is not committed.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by backends that can hand out short lived URLs.
// The download proxy fetches through them when no upstream base url is set,
// so the bucket can stay private.
type Presigner interface {
	// PresignRead signs a GET or HEAD request for key valid for ttl
	PresignRead(ctx context.Context, method, key string, ttl time.Duration) (string, error)
}

var (
	_ Presigner = (*S3Store)(nil)
	_ Presigner = (*MinIOStore)(nil)
)
