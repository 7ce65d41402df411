package filemanager

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"github.com/blobcab/blobcab/storage"
	"github.com/blobcab/blobcab/storage/memory"
)

func newManager(t *testing.T) (*FileManager, *memory.Store) {
	t.Helper()
	store := memory.New()
	_, err := store.EnsureContainer(context.Background(), "files")
	require.NoError(t, err)

	fm, err := New(store, "files")
	require.NoError(t, err)
	return fm, store
}

func addFile(t *testing.T, fm *FileManager, path, content string) *BlobEntry {
	t.Helper()
	entry, err := fm.AddFile(context.Background(), path, "", "", []byte(content))
	require.NoError(t, err)
	return entry
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "files")
	assert.Error(t, err)

	_, err = New(memory.New(), "")
	assert.Error(t, err)
}

func TestAddFileAndGetFile(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	content := []byte("quarterly numbers")

	entry, err := fm.AddFile(ctx, "docs/report.pdf", "Q3 Report.pdf", "application/pdf", content)
	require.NoError(t, err)
	assert.Equal(t, "docs/report.pdf", entry.Path)
	assert.Equal(t, "Q3 Report.pdf", entry.Name)
	assert.Equal(t, "application/pdf", entry.ContentType)
	assert.Equal(t, KindFile, entry.Kind)
	assert.Equal(t, int64(len(content)), entry.Size)
	assert.False(t, entry.LastModified.IsZero())

	sum := blake3.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), entry.ContentHash)
	assert.Len(t, entry.ContentHash, 64)

	got, err := fm.GetFile(ctx, "docs/report.pdf")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "docs/report.pdf", got.Path)
	assert.Equal(t, "Q3 Report.pdf", got.Name)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, entry.ContentHash, got.ContentHash)
	assert.Equal(t, int64(len(content)), got.Size)
}

func TestAddFileDefaults(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	entry, err := fm.AddFile(ctx, "notes/todo.txt", "", "", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "todo.txt", entry.Name)
	assert.Equal(t, "application/octet-stream", entry.ContentType)

	fm.SetDefaultContentType("text/plain")
	entry, err = fm.AddFile(ctx, "notes/other.txt", "", "", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", entry.ContentType)
}

func TestAddFileNormalizesPath(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	entry, err := fm.AddFile(ctx, "//docs//report.pdf", "", "", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "docs/report.pdf", entry.Path)

	got, err := fm.GetFile(ctx, "docs/report.pdf")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestAddFileRejectsFolderPath(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	_, err := fm.AddFile(ctx, "docs/", "", "", []byte("x"))
	assert.Error(t, err)

	_, err = fm.AddFile(ctx, "", "", "", []byte("x"))
	assert.Error(t, err)
}

func TestContentHashingDisabled(t *testing.T) {
	fm, _ := newManager(t)
	fm.DisableContentHashing()
	ctx := context.Background()

	entry, err := fm.AddFile(ctx, "plain.bin", "", "", []byte("data"))
	require.NoError(t, err)
	assert.Empty(t, entry.ContentHash)

	got, err := fm.GetFile(ctx, "plain.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.ContentHash)
}

func TestGetFileReturnsNilWhenMissing(t *testing.T) {
	fm, _ := newManager(t)

	entry, err := fm.GetFile(context.Background(), "nowhere/nothing.txt")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestOpenFile(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/readme.txt", "hello")

	rc, entry, err := fm.OpenFile(ctx, "docs/readme.txt")
	require.NoError(t, err)
	require.NotNil(t, rc)
	require.NotNil(t, entry)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "readme.txt", entry.Name)
}

func TestOpenFileMissing(t *testing.T) {
	fm, _ := newManager(t)

	rc, entry, err := fm.OpenFile(context.Background(), "missing.txt")
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Nil(t, entry)
}

func TestFileExists(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/readme.txt", "hello")

	exists, err := fm.FileExists(ctx, "docs/readme.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = fm.FileExists(ctx, "docs/other.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteFile(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/readme.txt", "hello")

	require.NoError(t, fm.DeleteFile(ctx, "docs/readme.txt"))

	exists, err := fm.FileExists(ctx, "docs/readme.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting again, or deleting something that never existed, succeeds.
	assert.NoError(t, fm.DeleteFile(ctx, "docs/readme.txt"))
	assert.NoError(t, fm.DeleteFile(ctx, "never/was.txt"))
}

func TestDeleteFileWithTrailingSlashDeletesFolder(t *testing.T) {
	fm, store := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")
	addFile(t, fm, "docs/sub/b.txt", "b")
	addFile(t, fm, "keep.txt", "k")

	require.NoError(t, fm.DeleteFile(ctx, "docs/"))

	assert.Equal(t, 1, store.ObjectCount())
	exists, err := fm.FileExists(ctx, "keep.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRenameFile(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	original := addFile(t, fm, "docs/draft.txt", "body")

	require.NoError(t, fm.RenameFile(ctx, "docs/draft.txt", "final.txt"))

	old, err := fm.GetFile(ctx, "docs/draft.txt")
	require.NoError(t, err)
	assert.Nil(t, old)

	renamed, err := fm.GetFile(ctx, "docs/final.txt")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, "final.txt", renamed.Name)
	assert.Equal(t, original.ContentHash, renamed.ContentHash)

	rc, _, err := fm.OpenFile(ctx, "docs/final.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestRenameFileToSameName(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/report.txt", "body")

	require.NoError(t, fm.RenameFile(ctx, "docs/report.txt", "report.txt"))

	entry, err := fm.GetFile(ctx, "docs/report.txt")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "report.txt", entry.Name)
}

func TestRenameFileMissing(t *testing.T) {
	fm, _ := newManager(t)

	err := fm.RenameFile(context.Background(), "docs/ghost.txt", "new.txt")
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func TestRenameFileValidation(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	assert.Error(t, fm.RenameFile(ctx, "docs/a.txt", ""))
	assert.Error(t, fm.RenameFile(ctx, "docs/a.txt", "sub/b.txt"))
	assert.Error(t, fm.RenameFile(ctx, "docs/", "b.txt"))
}

func TestMoveFile(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	entry, err := fm.AddFile(ctx, "inbox/scan.pdf", "Contract Scan.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)

	require.NoError(t, fm.MoveFile(ctx, "inbox/scan.pdf", "archive/2026/scan.pdf"))

	old, err := fm.GetFile(ctx, "inbox/scan.pdf")
	require.NoError(t, err)
	assert.Nil(t, old)

	moved, err := fm.GetFile(ctx, "archive/2026/scan.pdf")
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, "Contract Scan.pdf", moved.Name)
	assert.Equal(t, "application/pdf", moved.ContentType)
	assert.Equal(t, entry.ContentHash, moved.ContentHash)
}

func TestMoveFileToSamePath(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	require.NoError(t, fm.MoveFile(ctx, "docs/a.txt", "docs/a.txt"))

	exists, err := fm.FileExists(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMoveFileMissingSource(t *testing.T) {
	fm, _ := newManager(t)

	err := fm.MoveFile(context.Background(), "no/such.txt", "other/place.txt")
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func TestAddFolder(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	entry, err := fm.AddFolder(ctx, "docs", "archive")
	require.NoError(t, err)
	assert.Equal(t, "docs/archive/", entry.Path)
	assert.Equal(t, "archive", entry.Name)
	assert.Equal(t, KindFolder, entry.Kind)
	assert.True(t, entry.IsFolder())

	folders, err := fm.GetChildFolders(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "docs/archive/", folders[0].Path)

	// The placeholder is bookkeeping, not a file.
	files, err := fm.GetFolderFiles(ctx, "docs/archive")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAddFolderAtRoot(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	entry, err := fm.AddFolder(ctx, "", "uploads")
	require.NoError(t, err)
	assert.Equal(t, "uploads/", entry.Path)

	folders, err := fm.GetChildFolders(ctx, "")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "uploads/", folders[0].Path)
}

func TestAddFolderValidation(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()

	_, err := fm.AddFolder(ctx, "docs", "")
	assert.Error(t, err)

	_, err = fm.AddFolder(ctx, "docs", "a/b")
	assert.Error(t, err)
}

func TestDeleteFolder(t *testing.T) {
	fm, store := newManager(t)
	ctx := context.Background()
	_, err := fm.AddFolder(ctx, "", "docs")
	require.NoError(t, err)
	addFile(t, fm, "docs/a.txt", "a")
	addFile(t, fm, "docs/sub/b.txt", "b")
	addFile(t, fm, "other/c.txt", "c")

	require.NoError(t, fm.DeleteFolder(ctx, "docs"))

	assert.Equal(t, 1, store.ObjectCount())
	entries, err := fm.GetFolderFiles(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeleteFolderMissingIsNoop(t *testing.T) {
	fm, _ := newManager(t)
	assert.NoError(t, fm.DeleteFolder(context.Background(), "never/"))
}

func TestDeleteFolderRejectsEmptyPrefix(t *testing.T) {
	fm, _ := newManager(t)
	assert.Error(t, fm.DeleteFolder(context.Background(), ""))
	assert.Error(t, fm.DeleteFolder(context.Background(), "/"))
}

func TestRenameFolder(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	_, err := fm.AddFolder(ctx, "", "drafts")
	require.NoError(t, err)
	addFile(t, fm, "drafts/a.txt", "a")
	addFile(t, fm, "drafts/sub/b.txt", "b")

	require.NoError(t, fm.RenameFolder(ctx, "drafts", "published"))

	oldFiles, err := fm.GetFolderFiles(ctx, "drafts")
	require.NoError(t, err)
	assert.Empty(t, oldFiles)

	newFiles, err := fm.GetFolderFiles(ctx, "published")
	require.NoError(t, err)
	require.Len(t, newFiles, 1)
	assert.Equal(t, "published/a.txt", newFiles[0].Path)

	nested, err := fm.GetFile(ctx, "published/sub/b.txt")
	require.NoError(t, err)
	require.NotNil(t, nested)
}

func TestMoveFolder(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "projects/alpha/plan.txt", "p")
	addFile(t, fm, "projects/alpha/specs/api.txt", "s")

	require.NoError(t, fm.MoveFolder(ctx, "projects/alpha", "archive/2026/alpha"))

	gone, err := fm.GetFile(ctx, "projects/alpha/plan.txt")
	require.NoError(t, err)
	assert.Nil(t, gone)

	plan, err := fm.GetFile(ctx, "archive/2026/alpha/plan.txt")
	require.NoError(t, err)
	require.NotNil(t, plan)

	api, err := fm.GetFile(ctx, "archive/2026/alpha/specs/api.txt")
	require.NoError(t, err)
	require.NotNil(t, api)
}

func TestMoveFolderIntoItselfRejected(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	err := fm.MoveFolder(ctx, "docs", "docs/nested")
	assert.Error(t, err)
}

func TestMoveFolderOntoItselfIsNoop(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	require.NoError(t, fm.MoveFolder(ctx, "docs", "docs/"))

	exists, err := fm.FileExists(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMoveFolderMissingSourceIsNoop(t *testing.T) {
	fm, _ := newManager(t)
	assert.NoError(t, fm.MoveFolder(context.Background(), "ghost", "elsewhere"))
}

func TestGetFolderFilesListsDirectChildrenOnly(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	_, err := fm.AddFolder(ctx, "", "docs")
	require.NoError(t, err)
	addFile(t, fm, "docs/a.txt", "a")
	addFile(t, fm, "docs/b.txt", "b")
	addFile(t, fm, "docs/sub/deep.txt", "d")
	addFile(t, fm, "root.txt", "r")

	entries, err := fm.GetFolderFiles(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "docs/a.txt", entries[0].Path)
	assert.Equal(t, "docs/b.txt", entries[1].Path)
	for _, e := range entries {
		assert.Equal(t, KindFile, e.Kind)
	}
}

func TestGetFolderFilesAtRoot(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "root.txt", "r")
	addFile(t, fm, "docs/a.txt", "a")

	entries, err := fm.GetFolderFiles(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "root.txt", entries[0].Path)
}

func TestGetFolderFilesEmptyWhenMissing(t *testing.T) {
	fm, _ := newManager(t)

	entries, err := fm.GetFolderFiles(context.Background(), "no/such/folder")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetChildFoldersMixesImplicitAndExplicit(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	// Implicit folder: exists only because a file lives under it.
	addFile(t, fm, "docs/2024/report.txt", "r")
	// Explicit folder: placeholder only, no files.
	_, err := fm.AddFolder(ctx, "docs", "archive")
	require.NoError(t, err)
	addFile(t, fm, "docs/readme.txt", "x")

	folders, err := fm.GetChildFolders(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "docs/2024/", folders[0].Path)
	assert.Equal(t, "2024", folders[0].Name)
	assert.Equal(t, "docs/archive/", folders[1].Path)
	assert.Equal(t, "archive", folders[1].Name)
	for _, f := range folders {
		assert.Equal(t, KindFolder, f.Kind)
	}
}

func TestGetChildFoldersEmptyForLeaf(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	folders, err := fm.GetChildFolders(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestEnsureContainer(t *testing.T) {
	store := memory.New()
	fm, err := New(store, "fresh")
	require.NoError(t, err)
	ctx := context.Background()

	created, err := fm.EnsureContainer(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = fm.EnsureContainer(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDeleteContainer(t *testing.T) {
	fm, _ := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	require.NoError(t, fm.DeleteContainer(ctx))

	// Lookups against the vanished container behave like plain absence.
	entry, err := fm.GetFile(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, err := fm.GetFolderFiles(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, fm.DeleteContainer(ctx))
}

type fakeCache struct {
	mu      sync.Mutex
	objects map[string][]byte
	maxSize int64
	getErr  error
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{objects: make(map[string][]byte), maxSize: 1 << 20}
}

func (c *fakeCache) Get(contentHash string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	data, ok := c.objects[contentHash]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeCache) Put(contentHash string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.objects[contentHash] = data
	return nil
}

func (c *fakeCache) MaxObjectSize() int64 { return c.maxSize }

func TestOpenFileFillsAndServesCache(t *testing.T) {
	fm, _ := newManager(t)
	cache := newFakeCache()
	fm.UseCache(cache)
	ctx := context.Background()
	entry := addFile(t, fm, "docs/big.txt", "original")

	rc, _, err := fm.OpenFile(ctx, "docs/big.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "original", string(data))
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, []byte("original"), cache.objects[entry.ContentHash])

	// Mark the cached copy so a hit is distinguishable from a backend read.
	cache.mu.Lock()
	cache.objects[entry.ContentHash] = []byte("from-cache")
	cache.mu.Unlock()

	rc, _, err = fm.OpenFile(ctx, "docs/big.txt")
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "from-cache", string(data))
	assert.Equal(t, 1, cache.puts)
}

func TestOpenFileSkipsCacheForOversizedContent(t *testing.T) {
	fm, _ := newManager(t)
	cache := newFakeCache()
	cache.maxSize = 4
	fm.UseCache(cache)
	ctx := context.Background()
	addFile(t, fm, "docs/large.bin", "well over four bytes")

	rc, _, err := fm.OpenFile(ctx, "docs/large.bin")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "well over four bytes", string(data))
	assert.Zero(t, cache.puts)
}

func TestOpenFileFallsBackWhenCacheFails(t *testing.T) {
	fm, _ := newManager(t)
	cache := newFakeCache()
	cache.getErr = fmt.Errorf("cache unavailable")
	fm.UseCache(cache)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "content")

	rc, _, err := fm.OpenFile(ctx, "docs/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "content", string(data))
}

func TestOpenFileWithoutHashBypassesCache(t *testing.T) {
	fm, _ := newManager(t)
	fm.DisableContentHashing()
	cache := newFakeCache()
	fm.UseCache(cache)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "content")

	rc, entry, err := fm.OpenFile(ctx, "docs/a.txt")
	require.NoError(t, err)
	rc.Close()
	assert.Empty(t, entry.ContentHash)
	assert.Zero(t, cache.puts)
}

func TestStorageFailuresSurface(t *testing.T) {
	fm, store := newManager(t)
	ctx := context.Background()
	addFile(t, fm, "docs/a.txt", "a")

	boom := fmt.Errorf("backend down")
	store.SetError("files", "docs/a.txt", boom)
	defer store.ClearError("files", "docs/a.txt")

	_, err := fm.GetFile(ctx, "docs/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = fm.FileExists(ctx, "docs/a.txt")
	require.Error(t, err)

	err = fm.DeleteFile(ctx, "docs/a.txt")
	require.Error(t, err)
}
