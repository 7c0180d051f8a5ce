package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// Config configures an S3 compatible backend.
type Config struct {
	Endpoint  string // empty means AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// ObjectStore is the subset of object storage used for generated documents.
type ObjectStore interface {
	// Put uploads the object, replacing any previous version.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// PresignGet returns a time-limited download link.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
