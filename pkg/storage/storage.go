// Package storage holds uploaded source files and generated assets.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist in the store.
var ErrObjectNotFound = errors.New("object not found")

// AssetStore is a flat key/value blob store.
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited URL a browser can load the object from.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
