package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	_, err := New(Config{Bucket: "docs"})
	assert.Error(t, err)
	_, err = New(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	store, err := New(Config{Endpoint: "localhost:9000", Bucket: "docs", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "docs", store.bucket)
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isMissing(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isMissing(errors.New("dial tcp: refused")))
}
