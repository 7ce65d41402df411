package s3

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobcab/blobcab/storage"
	"github.com/blobcab/blobcab/storage/storagetest"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "none"},
		{name: "deadline", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "access denied", err: errors.New("AccessDenied: not allowed"), expected: "access_denied"},
		{name: "no such key", err: errors.New("NoSuchKey: the key does not exist"), expected: "not_found"},
		{name: "throttled", err: errors.New("SlowDown: reduce request rate"), expected: "throttled"},
		{name: "network", err: errors.New("dial tcp: connection refused"), expected: "network_error"},
		{name: "unknown", err: errors.New("something else"), expected: "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, classifyError(tc.err))
		})
	}
}

func TestErrorIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "404 status", err: minio.ErrorResponse{StatusCode: 404, Code: "NoSuchKey"}, expected: true},
		{name: "no such bucket", err: minio.ErrorResponse{StatusCode: 409, Code: "NoSuchBucket"}, expected: true},
		{name: "access denied", err: minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, errorIsNotFound(tc.err))
		})
	}
}

func TestWrapMapsNotFound(t *testing.T) {
	err := wrap("stat", "tenant-a", "missing.txt", minio.ErrorResponse{StatusCode: 404, Code: "NoSuchKey"})
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))

	var se *storage.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "stat", se.Op)
	assert.Equal(t, "tenant-a", se.Container)
	assert.Equal(t, "missing.txt", se.Key)

	// Non-404 errors pass through unchanged
	cause := minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}
	err = wrap("get", "tenant-a", "k", cause)
	assert.False(t, storage.IsNotFound(err))
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, wrap("get", "tenant-a", "k", nil))
}

func TestNormalizeMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]string
		expected map[string]string
	}{
		{name: "empty", input: nil, expected: nil},
		{
			name:     "canonicalized keys",
			input:    map[string]string{"Filename": "a.txt", "Blake3": "abc"},
			expected: map[string]string{"filename": "a.txt", "blake3": "abc"},
		},
		{
			name:     "header form",
			input:    map[string]string{"X-Amz-Meta-Filename": "a.txt"},
			expected: map[string]string{"filename": "a.txt"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizeMetadata(tc.input))
		})
	}
}

// TestConformance_Integration runs the full driver conformance suite against a
// live S3-compatible endpoint. Configure via environment:
//
//	BLOBCAB_TEST_S3_ENDPOINT=localhost:9000
//	BLOBCAB_TEST_S3_ACCESS_KEY=minioadmin
//	BLOBCAB_TEST_S3_SECRET_KEY=minioadmin
func TestConformance_Integration(t *testing.T) {
	endpoint := os.Getenv("BLOBCAB_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping: BLOBCAB_TEST_S3_ENDPOINT not set")
	}

	accessKey := os.Getenv("BLOBCAB_TEST_S3_ACCESS_KEY")
	secretKey := os.Getenv("BLOBCAB_TEST_S3_SECRET_KEY")

	storagetest.Run(t, func(t *testing.T) storage.Store {
		st, err := New(endpoint, accessKey, secretKey, false, false)
		require.NoError(t, err)
		return st
	})
}
