package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("hello")
	require.NoError(t, s.Put(ctx, "a/b.txt", data, "text/plain"))
	data[0] = 'j' // store keeps its own copy

	got, ct, err := s.Get(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, "text/plain", ct)

	url, err := s.URL(ctx, "a/b.txt", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "data:text/plain;base64,aGVsbG8=", url)

	require.NoError(t, s.Delete(ctx, "a/b.txt"))
	_, _, err = s.Get(ctx, "a/b.txt")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.Equal(t, 0, s.Len())
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
}

var _ AssetStore = (*MemoryStore)(nil)
var _ AssetStore = (*S3Store)(nil)
