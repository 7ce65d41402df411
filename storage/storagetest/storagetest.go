// Package storagetest provides the conformance suite every storage.Store
// driver must pass. The memory driver runs it unconditionally; the S3 driver
// runs it against a live endpoint when one is configured.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobcab/blobcab/storage"
)

// Factory creates a fresh store for one conformance subtest.
type Factory func(t *testing.T) storage.Store

// Run exercises the full storage.Store contract against stores produced by
// factory. Each subtest works in its own container and removes it afterwards.
func Run(t *testing.T, factory Factory) {
	t.Run("ContainerLifecycle", func(t *testing.T) { testContainerLifecycle(t, factory(t)) })
	t.Run("PutGetRoundtrip", func(t *testing.T) { testPutGetRoundtrip(t, factory(t)) })
	t.Run("PutOverwrite", func(t *testing.T) { testPutOverwrite(t, factory(t)) })
	t.Run("StatNotFound", func(t *testing.T) { testStatNotFound(t, factory(t)) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, factory(t)) })
	t.Run("PutMissingContainer", func(t *testing.T) { testPutMissingContainer(t, factory(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, factory(t)) })
	t.Run("Copy", func(t *testing.T) { testCopy(t, factory(t)) })
	t.Run("CopyReplaceMetadata", func(t *testing.T) { testCopyReplaceMetadata(t, factory(t)) })
	t.Run("CopyMissingSource", func(t *testing.T) { testCopyMissingSource(t, factory(t)) })
	t.Run("ListRecursive", func(t *testing.T) { testListRecursive(t, factory(t)) })
	t.Run("ListDelimiter", func(t *testing.T) { testListDelimiter(t, factory(t)) })
	t.Run("ListPlaceholderSelf", func(t *testing.T) { testListPlaceholderSelf(t, factory(t)) })
	t.Run("ListMissingContainer", func(t *testing.T) { testListMissingContainer(t, factory(t)) })
}

var containerSeq atomic.Int64

// uniqueName returns a container name that is unique within the process and
// valid as an S3 bucket name.
func uniqueName() string {
	return fmt.Sprintf("blobcab-conf-%d-%d", time.Now().UnixNano(), containerSeq.Add(1))
}

// newContainer creates a uniquely named container and registers its removal.
func newContainer(t *testing.T, st storage.Store) string {
	t.Helper()
	ctx := context.Background()

	container := uniqueName()
	created, err := st.EnsureContainer(ctx, container)
	require.NoError(t, err)
	require.True(t, created, "expected a fresh container to be created")

	t.Cleanup(func() {
		if err := st.DeleteContainer(ctx, container); err != nil {
			t.Logf("cleanup: failed to delete container %s: %v", container, err)
		}
	})
	return container
}

func put(t *testing.T, st storage.Store, container, key, content string, opts storage.PutOptions) {
	t.Helper()
	err := st.Put(context.Background(), container, key, bytes.NewReader([]byte(content)), int64(len(content)), opts)
	require.NoError(t, err, "put %s", key)
}

func testContainerLifecycle(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := uniqueName()

	exists, err := st.ContainerExists(ctx, container)
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := st.EnsureContainer(ctx, container)
	require.NoError(t, err)
	assert.True(t, created)

	// Second ensure finds the container in place
	created, err = st.EnsureContainer(ctx, container)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err = st.ContainerExists(ctx, container)
	require.NoError(t, err)
	assert.True(t, exists)

	// Container deletion removes content too
	put(t, st, container, "docs/report.pdf", "content", storage.PutOptions{})

	require.NoError(t, st.DeleteContainer(ctx, container))

	exists, err = st.ContainerExists(ctx, container)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing container is a no-op
	require.NoError(t, st.DeleteContainer(ctx, container))
}

func testPutGetRoundtrip(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	content := "quarterly results"
	put(t, st, container, "docs/report.pdf", content, storage.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"filename": "Q3 Report.pdf"},
	})

	rc, err := st.Get(ctx, container, "docs/report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	info, err := st.Stat(ctx, container, "docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "docs/report.pdf", info.Key)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, "Q3 Report.pdf", info.Metadata["filename"])
	assert.False(t, info.LastModified.IsZero())
	assert.NotEmpty(t, info.ETag)
}

func testPutOverwrite(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "note.txt", "first", storage.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"filename": "first.txt"},
	})
	put(t, st, container, "note.txt", "second version", storage.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"filename": "second.txt"},
	})

	rc, err := st.Get(ctx, container, "note.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second version", string(data))

	info, err := st.Stat(ctx, container, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("second version")), info.Size)
	assert.Equal(t, "second.txt", info.Metadata["filename"])
}

func testStatNotFound(t *testing.T, st storage.Store) {
	container := newContainer(t, st)

	info, err := st.Stat(context.Background(), container, "missing.txt")
	assert.Nil(t, info)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err), "expected not-found, got %v", err)

	var se *storage.StorageError
	assert.ErrorAs(t, err, &se)
}

func testGetNotFound(t *testing.T, st storage.Store) {
	container := newContainer(t, st)

	rc, err := st.Get(context.Background(), container, "missing.txt")
	require.Error(t, err)
	assert.Nil(t, rc)
	assert.True(t, storage.IsNotFound(err), "expected not-found, got %v", err)
}

func testPutMissingContainer(t *testing.T, st storage.Store) {
	container := uniqueName()

	err := st.Put(context.Background(), container, "key", bytes.NewReader([]byte("x")), 1, storage.PutOptions{})
	require.Error(t, err)
}

func testDeleteIdempotent(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "doomed.txt", "bye", storage.PutOptions{})

	require.NoError(t, st.Delete(ctx, container, "doomed.txt"))

	_, err := st.Stat(ctx, container, "doomed.txt")
	assert.True(t, storage.IsNotFound(err))

	// Deleting again is a silent no-op
	require.NoError(t, st.Delete(ctx, container, "doomed.txt"))
}

func testCopy(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "src.txt", "payload", storage.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"filename": "src.txt"},
	})

	require.NoError(t, st.Copy(ctx, container, "src.txt", "dst.txt", storage.CopyOptions{}))

	// Source stays in place; Copy never deletes
	_, err := st.Stat(ctx, container, "src.txt")
	require.NoError(t, err)

	rc, err := st.Get(ctx, container, "dst.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	info, err := st.Stat(ctx, container, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "src.txt", info.Metadata["filename"], "copy carries source metadata over")
	assert.Equal(t, "text/plain", info.ContentType)
}

func testCopyReplaceMetadata(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "src.txt", "payload", storage.PutOptions{
		Metadata: map[string]string{"filename": "old.txt"},
	})

	err := st.Copy(ctx, container, "src.txt", "dst.txt", storage.CopyOptions{
		Metadata:        map[string]string{"filename": "new.txt"},
		ReplaceMetadata: true,
	})
	require.NoError(t, err)

	info, err := st.Stat(ctx, container, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", info.Metadata["filename"])
}

func testCopyMissingSource(t *testing.T, st storage.Store) {
	container := newContainer(t, st)

	err := st.Copy(context.Background(), container, "ghost.txt", "dst.txt", storage.CopyOptions{})
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err), "expected not-found, got %v", err)
}

func testListRecursive(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	keys := []string{
		"docs/2024/q3.pdf",
		"docs/2024/q4.pdf",
		"docs/readme.txt",
		"images/logo.png",
	}
	for _, key := range keys {
		put(t, st, container, key, "content of "+key, storage.PutOptions{})
	}

	objects, err := st.List(ctx, container, "docs/", true)
	require.NoError(t, err)

	var got []string
	for _, obj := range objects {
		assert.False(t, obj.IsPrefix, "recursive listing returns objects only")
		got = append(got, obj.Key)
	}
	assert.Equal(t, []string{"docs/2024/q3.pdf", "docs/2024/q4.pdf", "docs/readme.txt"}, got)
	assert.True(t, sort.StringsAreSorted(got))

	// Empty prefix lists the whole container
	objects, err = st.List(ctx, container, "", true)
	require.NoError(t, err)
	assert.Len(t, objects, len(keys))

	// A prefix with no matches is an empty result, not an error
	objects, err = st.List(ctx, container, "nothing-here/", true)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func testListDelimiter(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "docs/readme.txt", "x", storage.PutOptions{})
	put(t, st, container, "docs/2024/q3.pdf", "x", storage.PutOptions{})
	put(t, st, container, "docs/2024/q4.pdf", "x", storage.PutOptions{})
	put(t, st, container, "docs/archive/", "", storage.PutOptions{})

	objects, err := st.List(ctx, container, "docs/", false)
	require.NoError(t, err)

	var files, prefixes []string
	for _, obj := range objects {
		if obj.IsPrefix {
			prefixes = append(prefixes, obj.Key)
		} else {
			files = append(files, obj.Key)
		}
	}

	assert.Equal(t, []string{"docs/readme.txt"}, files)
	// Deeper keys collapse into one entry per child prefix; the empty-folder
	// placeholder shows up the same way
	sort.Strings(prefixes)
	assert.Equal(t, []string{"docs/2024/", "docs/archive/"}, prefixes)
}

func testListPlaceholderSelf(t *testing.T, st storage.Store) {
	ctx := context.Background()
	container := newContainer(t, st)

	put(t, st, container, "docs/archive/", "", storage.PutOptions{})

	// Listing inside the folder returns its own placeholder as an object
	objects, err := st.List(ctx, container, "docs/archive/", false)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "docs/archive/", objects[0].Key)
	assert.False(t, objects[0].IsPrefix)
	assert.Equal(t, int64(0), objects[0].Size)
}

func testListMissingContainer(t *testing.T, st storage.Store) {
	container := uniqueName()

	_, err := st.List(context.Background(), container, "", true)
	require.Error(t, err)
}
