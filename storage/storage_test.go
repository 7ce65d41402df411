package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StorageError
		expected string
	}{
		{
			name:     "with key",
			err:      &StorageError{Op: "get", Container: "tenant-a", Key: "docs/report.pdf", Err: errors.New("boom")},
			expected: "storage get tenant-a/docs/report.pdf: boom",
		},
		{
			name:     "container only",
			err:      &StorageError{Op: "ensure_container", Container: "tenant-a", Err: errors.New("boom")},
			expected: "storage ensure_container tenant-a: boom",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestIsNotFound(t *testing.T) {
	wrapped := &StorageError{Op: "stat", Container: "c", Key: "k", Err: ErrNotFound}

	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(fmt.Errorf("outer: %w", wrapped)))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StorageError{Op: "put", Container: "c", Key: "k", Err: cause}

	assert.True(t, errors.Is(err, cause))

	var se *StorageError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &se))
	assert.Equal(t, "put", se.Op)
}
