package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobcab/blobcab/storage"
	"github.com/blobcab/blobcab/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestSetError(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.EnsureContainer(ctx, "tenant-a")
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "tenant-a", "ok.txt", bytes.NewReader([]byte("x")), 1, storage.PutOptions{}))

	boom := errors.New("simulated backend failure")
	st.SetError("tenant-a", "ok.txt", boom)

	// All operations on the faulted key surface the injected error
	_, err = st.Get(ctx, "tenant-a", "ok.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = st.Stat(ctx, "tenant-a", "ok.txt")
	assert.ErrorIs(t, err, boom)

	err = st.Delete(ctx, "tenant-a", "ok.txt")
	assert.ErrorIs(t, err, boom)

	err = st.Copy(ctx, "tenant-a", "ok.txt", "copy.txt", storage.CopyOptions{})
	assert.ErrorIs(t, err, boom)

	// Errors are wrapped in the package error model
	var se *storage.StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "tenant-a", se.Container)

	// Other keys are unaffected
	require.NoError(t, st.Put(ctx, "tenant-a", "other.txt", bytes.NewReader([]byte("y")), 1, storage.PutOptions{}))

	st.ClearError("tenant-a", "ok.txt")
	_, err = st.Stat(ctx, "tenant-a", "ok.txt")
	require.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := st.EnsureContainer(ctx, "tenant-a")
	require.NoError(t, err)

	cancel()

	_, err = st.Stat(ctx, "tenant-a", "any")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	err = st.Put(ctx, "tenant-a", "any", bytes.NewReader(nil), 0, storage.PutOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverwriteReleasesOldContent(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.EnsureContainer(ctx, "tenant-a")
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "tenant-a", "a.txt", bytes.NewReader([]byte("one")), 3, storage.PutOptions{}))
	require.NoError(t, st.Put(ctx, "tenant-a", "a.txt", bytes.NewReader([]byte("two!")), 4, storage.PutOptions{}))

	assert.Equal(t, 1, st.ObjectCount())

	rc, err := st.Get(ctx, "tenant-a", "a.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "two!", string(data))
}

func TestPutSizeMismatch(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.EnsureContainer(ctx, "tenant-a")
	require.NoError(t, err)

	err = st.Put(ctx, "tenant-a", "a.txt", bytes.NewReader([]byte("abc")), 99, storage.PutOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.EnsureContainer(ctx, "tenant-a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("file-%d.txt", n)
			content := fmt.Sprintf("content-%d", n)
			if err := st.Put(ctx, "tenant-a", key, bytes.NewReader([]byte(content)), int64(len(content)), storage.PutOptions{}); err != nil {
				t.Errorf("put %s: %v", key, err)
				return
			}
			if _, err := st.Stat(ctx, "tenant-a", key); err != nil {
				t.Errorf("stat %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	objects, err := st.List(ctx, "tenant-a", "", true)
	require.NoError(t, err)
	assert.Len(t, objects, 20)
}
