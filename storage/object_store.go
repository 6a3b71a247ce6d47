package storage

import (
	"context"
	"io"
)

type PutResult struct {
	Key  string
	ETag string
}

// ObjectStore is a private bucket of opaque objects.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (*PutResult, error)
}
