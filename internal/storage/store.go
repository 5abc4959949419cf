package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// CopySource describes a source object for a server-side copy.
type CopySource struct {
	Bucket string
	Object string
}

// CopyDest describes a destination object for a server-side copy.
type CopyDest struct {
	Bucket string
	Object string
}

// ObjectInfo is the stat result of a stored object.
type ObjectInfo struct {
	ObjectName   string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Store abstracts the blob store gateway. Keys are opaque, caller-generated strings.
type Store interface {
	PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
	PresignedGetObjectWithResponse(ctx context.Context, bucket, object string, expiry time.Duration, params map[string]string) (string, error)
	CopyObject(ctx context.Context, dest CopyDest, src CopySource) error
	RemoveObject(ctx context.Context, bucket, object string) error
	StatObject(ctx context.Context, bucket, object string) (ObjectInfo, error)
}

// Default is the main object store instance.
var Default Store
