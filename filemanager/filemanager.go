// Package filemanager exposes file and folder semantics on top of a flat
// object store.
//
// A FileManager binds a storage.Store to a single container. Files map to
// object keys and folders are emulated with the "/" delimiter: any key ending
// in "/" is a folder placeholder, and every key containing "/" implies the
// chain of parent folders above it. A folder therefore exists implicitly as
// soon as a file lives under it, and explicitly once AddFolder records a
// zero-byte placeholder for it.
//
// Absence is not an error. Lookups on missing paths return nil entries,
// listings of empty prefixes return empty slices, and deletes of missing
// objects succeed. Only genuine backend failures surface as errors, wrapped
// by the storage layer so callers can inspect them with storage.IsNotFound.
//
// Rename and move are implemented as copy-then-delete because object stores
// have no atomic rename. A crash between the two phases can leave the entry
// reachable under both paths; the copy phase always completes before the
// first delete so content is never lost.
package filemanager

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/blobcab/blobcab/helpers"
	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/metrics"
	"github.com/blobcab/blobcab/storage"
)

// folderContentType marks zero-byte folder placeholder objects. The value is
// the convention most S3 browsers recognize.
const folderContentType = "application/x-directory"

// ContentCache is the optional local content cache OpenFile consults before
// reaching the backend. Content is addressed by BLAKE3 hash, so only objects
// uploaded with hashing enabled are cacheable.
//
// Get returns (nil, nil) on a miss. Put may decline oversized content.
type ContentCache interface {
	Get(contentHash string) (io.ReadCloser, error)
	Put(contentHash string, data []byte) error
	MaxObjectSize() int64
}

// FileManager provides file and folder operations scoped to one container.
type FileManager struct {
	store              storage.Store
	container          string
	cache              ContentCache
	hashing            bool
	defaultContentType string
}

// New creates a FileManager for the given container. Content hashing is
// enabled by default; the container is not created until EnsureContainer.
func New(store storage.Store, container string) (*FileManager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if container == "" {
		return nil, fmt.Errorf("container name is required")
	}
	return &FileManager{
		store:              store,
		container:          container,
		hashing:            true,
		defaultContentType: "application/octet-stream",
	}, nil
}

// Container returns the container name this manager is bound to.
func (fm *FileManager) Container() string {
	return fm.container
}

// SetDefaultContentType overrides the content type applied when AddFile is
// called with an empty one.
func (fm *FileManager) SetDefaultContentType(contentType string) {
	if contentType != "" {
		fm.defaultContentType = contentType
	}
}

// DisableContentHashing stops recording BLAKE3 hashes on upload. Files stored
// without a hash are never served from the local cache.
func (fm *FileManager) DisableContentHashing() {
	fm.hashing = false
}

// UseCache attaches a local content cache consulted by OpenFile.
func (fm *FileManager) UseCache(cache ContentCache) {
	fm.cache = cache
}

// EnsureContainer creates the container when it does not exist yet. It
// returns true when this call created it.
func (fm *FileManager) EnsureContainer(ctx context.Context) (created bool, err error) {
	defer fm.observe("ensure_container", time.Now(), &err)
	return fm.store.EnsureContainer(ctx, fm.container)
}

// DeleteContainer removes the container and everything in it. Deleting a
// missing container is a no-op.
func (fm *FileManager) DeleteContainer(ctx context.Context) (err error) {
	defer fm.observe("delete_container", time.Now(), &err)
	return fm.store.DeleteContainer(ctx, fm.container)
}

// AddFile uploads data under the given path and returns the stored entry.
// An empty name falls back to the last path segment, an empty contentType to
// the manager default. The display name is kept in object metadata so it
// survives independently of the key.
func (fm *FileManager) AddFile(ctx context.Context, path, name, contentType string, data []byte) (entry *BlobEntry, err error) {
	defer fm.observe("add_file", time.Now(), &err)

	key := helpers.CleanKey(path)
	if key == "" || helpers.IsFolderKey(key) {
		return nil, fmt.Errorf("invalid file path %q", path)
	}
	if name == "" {
		name = helpers.BaseName(key)
	}
	if contentType == "" {
		contentType = fm.defaultContentType
	}

	metadata := map[string]string{
		metaFilename: helpers.SanitizeMetadataValue(name),
	}
	var contentHash string
	if fm.hashing {
		sum := blake3.Sum256(data)
		contentHash = hex.EncodeToString(sum[:])
		metadata[metaContentHash] = contentHash
	}

	err = fm.store.Put(ctx, fm.container, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: contentType,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("FILEMANAGER: Stored file", "container", fm.container, "path", key, "size", len(data))
	return &BlobEntry{
		Path:         key,
		Name:         name,
		ContentType:  contentType,
		Kind:         KindFile,
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
		ContentHash:  contentHash,
	}, nil
}

// GetFile returns the entry stored at path, or nil without error when
// nothing is stored there.
func (fm *FileManager) GetFile(ctx context.Context, path string) (entry *BlobEntry, err error) {
	defer fm.observe("get_file", time.Now(), &err)

	key := helpers.CleanKey(path)
	if key == "" {
		return nil, fmt.Errorf("invalid file path %q", path)
	}
	info, err := fm.store.Stat(ctx, fm.container, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromObject(info), nil
}

// OpenFile returns a reader over the content stored at path together with its
// entry. A missing path yields (nil, nil, nil). When a content cache is
// attached, hashed content is served from it and cache misses of cacheable
// size are filled on the way through. The caller owns the returned reader.
func (fm *FileManager) OpenFile(ctx context.Context, path string) (rc io.ReadCloser, entry *BlobEntry, err error) {
	defer fm.observe("open_file", time.Now(), &err)

	key := helpers.CleanKey(path)
	if key == "" || helpers.IsFolderKey(key) {
		return nil, nil, fmt.Errorf("invalid file path %q", path)
	}

	info, err := fm.store.Stat(ctx, fm.container, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	entry = entryFromObject(info)

	if fm.cache != nil && entry.ContentHash != "" {
		cached, cerr := fm.cache.Get(entry.ContentHash)
		if cerr != nil {
			logger.Warn("FILEMANAGER: Cache read failed, falling back to storage", "path", key, "hash", entry.ContentHash, "error", cerr)
		} else if cached != nil {
			return cached, entry, nil
		}
	}

	rc, err = fm.store.Get(ctx, fm.container, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if fm.cache != nil && entry.ContentHash != "" && entry.Size <= fm.cache.MaxObjectSize() {
		data, rerr := io.ReadAll(rc)
		rc.Close()
		if rerr != nil {
			return nil, nil, fmt.Errorf("reading %s/%s: %w", fm.container, key, rerr)
		}
		if perr := fm.cache.Put(entry.ContentHash, data); perr != nil {
			logger.Warn("FILEMANAGER: Cache fill failed", "path", key, "hash", entry.ContentHash, "error", perr)
		}
		return io.NopCloser(bytes.NewReader(data)), entry, nil
	}
	return rc, entry, nil
}

// FileExists reports whether an object is stored at path. Folder placeholder
// paths work too; plain absence is never an error.
func (fm *FileManager) FileExists(ctx context.Context, path string) (exists bool, err error) {
	defer fm.observe("file_exists", time.Now(), &err)

	key := helpers.CleanKey(path)
	if key == "" {
		return false, fmt.Errorf("invalid file path %q", path)
	}
	_, err = fm.store.Stat(ctx, fm.container, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteFile removes the object at path. A path ending in "/" is treated as
// a folder and delegates to DeleteFolder. Deleting a missing file succeeds.
func (fm *FileManager) DeleteFile(ctx context.Context, path string) (err error) {
	key := helpers.CleanKey(path)
	if helpers.IsFolderKey(key) {
		return fm.DeleteFolder(ctx, key)
	}

	defer fm.observe("delete_file", time.Now(), &err)
	if key == "" {
		return fmt.Errorf("invalid file path %q", path)
	}
	if err = fm.store.Delete(ctx, fm.container, key); err != nil {
		return err
	}
	logger.Debug("FILEMANAGER: Deleted file", "container", fm.container, "path", key)
	return nil
}

// RenameFile gives the object at path a new final segment, rewriting its
// display name metadata to match. The object key changes; renaming to the
// current name only refreshes the metadata.
func (fm *FileManager) RenameFile(ctx context.Context, path, newName string) (err error) {
	defer fm.observe("rename_file", time.Now(), &err)

	key := helpers.CleanKey(path)
	if key == "" || helpers.IsFolderKey(key) {
		return fmt.Errorf("invalid file path %q", path)
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.Contains(newName, helpers.KeyDelimiter) {
		return fmt.Errorf("invalid file name %q", newName)
	}

	info, err := fm.store.Stat(ctx, fm.container, key)
	if err != nil {
		return err
	}
	metadata := make(map[string]string, len(info.Metadata)+1)
	for k, v := range info.Metadata {
		metadata[k] = v
	}
	metadata[metaFilename] = helpers.SanitizeMetadataValue(newName)

	dstKey := helpers.ParentPrefix(key) + newName
	err = fm.store.Copy(ctx, fm.container, key, dstKey, storage.CopyOptions{
		Metadata:        metadata,
		ReplaceMetadata: true,
	})
	if err != nil {
		return err
	}
	if dstKey != key {
		if err = fm.store.Delete(ctx, fm.container, key); err != nil {
			return err
		}
	}
	logger.Debug("FILEMANAGER: Renamed file", "container", fm.container, "from", key, "to", dstKey)
	return nil
}

// MoveFile relocates the object at path to newPath, keeping content type and
// metadata. Moving a path onto itself is a no-op.
func (fm *FileManager) MoveFile(ctx context.Context, path, newPath string) (err error) {
	defer fm.observe("move_file", time.Now(), &err)

	srcKey := helpers.CleanKey(path)
	dstKey := helpers.CleanKey(newPath)
	if srcKey == "" || helpers.IsFolderKey(srcKey) {
		return fmt.Errorf("invalid file path %q", path)
	}
	if dstKey == "" || helpers.IsFolderKey(dstKey) {
		return fmt.Errorf("invalid destination path %q", newPath)
	}
	if srcKey == dstKey {
		return nil
	}

	if err = fm.store.Copy(ctx, fm.container, srcKey, dstKey, storage.CopyOptions{}); err != nil {
		return err
	}
	if err = fm.store.Delete(ctx, fm.container, srcKey); err != nil {
		return err
	}
	logger.Debug("FILEMANAGER: Moved file", "container", fm.container, "from", srcKey, "to", dstKey)
	return nil
}

// AddFolder records a zero-byte placeholder for a folder named name under
// parentPath, so the folder is listable before any file lands in it. An empty
// parentPath creates the folder at the container root.
func (fm *FileManager) AddFolder(ctx context.Context, parentPath, name string) (entry *BlobEntry, err error) {
	defer fm.observe("add_folder", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, helpers.KeyDelimiter) {
		return nil, fmt.Errorf("invalid folder name %q", name)
	}
	key := helpers.FolderKey(helpers.JoinKey(parentPath, name))

	err = fm.store.Put(ctx, fm.container, key, bytes.NewReader(nil), 0, storage.PutOptions{
		ContentType: folderContentType,
		Metadata:    map[string]string{metaFilename: helpers.SanitizeMetadataValue(name)},
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("FILEMANAGER: Created folder", "container", fm.container, "path", key)
	return folderEntry(key), nil
}

// DeleteFolder removes every object under the folder prefix, including the
// placeholder itself. Deleting a folder with nothing under it is a no-op. The
// empty prefix is rejected; clearing a whole container is DeleteContainer's
// job.
func (fm *FileManager) DeleteFolder(ctx context.Context, prefix string) (err error) {
	defer fm.observe("delete_folder", time.Now(), &err)

	p := helpers.FolderKey(prefix)
	if p == "" {
		return fmt.Errorf("folder prefix is required")
	}

	objects, err := fm.store.List(ctx, fm.container, p, true)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err = fm.store.Delete(ctx, fm.container, obj.Key); err != nil {
			return err
		}
	}
	if len(objects) > 0 {
		metrics.FolderBatchObjects.WithLabelValues("delete_folder").Observe(float64(len(objects)))
		logger.Info("FILEMANAGER: Deleted folder", "container", fm.container, "path", p, "objects", len(objects))
	}
	return nil
}

// RenameFolder changes the final segment of a folder prefix, relocating every
// object under it.
func (fm *FileManager) RenameFolder(ctx context.Context, prefix, newName string) (err error) {
	defer fm.observe("rename_folder", time.Now(), &err)

	src := helpers.FolderKey(prefix)
	if src == "" {
		return fmt.Errorf("folder prefix is required")
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.Contains(newName, helpers.KeyDelimiter) {
		return fmt.Errorf("invalid folder name %q", newName)
	}
	dst := helpers.ParentPrefix(src) + newName + helpers.KeyDelimiter
	return fm.relocateFolder(ctx, "rename_folder", src, dst)
}

// MoveFolder relocates a folder and everything under it to a new prefix.
// Moving a folder onto itself is a no-op; moving it under its own prefix is
// rejected.
func (fm *FileManager) MoveFolder(ctx context.Context, prefix, newPrefix string) (err error) {
	defer fm.observe("move_folder", time.Now(), &err)

	src := helpers.FolderKey(prefix)
	if src == "" {
		return fmt.Errorf("folder prefix is required")
	}
	dst := helpers.FolderKey(newPrefix)
	if dst == "" {
		return fmt.Errorf("destination folder prefix is required")
	}
	return fm.relocateFolder(ctx, "move_folder", src, dst)
}

// relocateFolder copies every object under src to the same position under dst
// and then deletes the originals. Copies complete before the first delete so
// a mid-operation failure never loses content, though it can leave objects
// reachable under both prefixes.
func (fm *FileManager) relocateFolder(ctx context.Context, op, src, dst string) error {
	if dst == src {
		return nil
	}
	if strings.HasPrefix(dst, src) {
		return fmt.Errorf("cannot move folder %q into itself", src)
	}

	objects, err := fm.store.List(ctx, fm.container, src, true)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		dstKey := dst + obj.Key[len(src):]
		opts := storage.CopyOptions{}
		if obj.Key == src {
			// The placeholder carries the folder's display name; refresh it.
			opts = storage.CopyOptions{
				Metadata:        map[string]string{metaFilename: helpers.SanitizeMetadataValue(helpers.BaseName(dst))},
				ReplaceMetadata: true,
			}
		}
		if err := fm.store.Copy(ctx, fm.container, obj.Key, dstKey, opts); err != nil {
			return err
		}
	}
	for _, obj := range objects {
		if err := fm.store.Delete(ctx, fm.container, obj.Key); err != nil {
			return err
		}
	}
	if len(objects) > 0 {
		metrics.FolderBatchObjects.WithLabelValues(op).Observe(float64(len(objects)))
		logger.Info("FILEMANAGER: Relocated folder", "container", fm.container, "from", src, "to", dst, "objects", len(objects))
	}
	return nil
}

// GetFolderFiles lists the files directly inside the folder prefix. Deeper
// levels are collapsed away and the folder's own placeholder is skipped. The
// empty prefix lists the container root; a prefix with nothing under it
// yields an empty result.
func (fm *FileManager) GetFolderFiles(ctx context.Context, prefix string) (entries []*BlobEntry, err error) {
	defer fm.observe("get_folder_files", time.Now(), &err)

	p := helpers.FolderKey(prefix)
	objects, err := fm.store.List(ctx, fm.container, p, false)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries = make([]*BlobEntry, 0, len(objects))
	for _, obj := range objects {
		if obj.IsPrefix || obj.Key == p {
			continue
		}
		entries = append(entries, entryFromObject(&obj))
	}
	return entries, nil
}

// GetChildFolders lists the folders directly inside the folder prefix, both
// placeholder-backed and implicit ones. The empty prefix lists root-level
// folders.
func (fm *FileManager) GetChildFolders(ctx context.Context, prefix string) (entries []*BlobEntry, err error) {
	defer fm.observe("get_child_folders", time.Now(), &err)

	p := helpers.FolderKey(prefix)
	objects, err := fm.store.List(ctx, fm.container, p, false)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries = make([]*BlobEntry, 0, len(objects))
	for _, obj := range objects {
		if !obj.IsPrefix {
			continue
		}
		entries = append(entries, folderEntry(obj.Key))
	}
	return entries, nil
}

// observe records the operation counter and duration for one call.
func (fm *FileManager) observe(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	metrics.FileOperationsTotal.WithLabelValues(operation, status).Inc()
	metrics.FileOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
