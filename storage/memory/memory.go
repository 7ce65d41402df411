// Package memory implements the storage.Store contract in-process, for tests
// and local development.
//
// Object content lives in an afero memory filesystem under flat generated
// paths; the container/key index and object metadata live in a mutex-guarded
// map, because blob keys (which may legally end in "/") do not map onto a
// hierarchical filesystem.
//
// The driver reproduces the backend behaviors the rest of the code depends
// on: lexically sorted listings, "/" delimiter collapsing for non-recursive
// listings, idempotent deletes, and ErrNotFound for absent objects and
// containers. Per-key fault injection via SetError makes failure paths
// testable without a real backend.
package memory

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/blobcab/blobcab/storage"
)

type object struct {
	file         string
	size         int64
	etag         string
	contentType  string
	metadata     map[string]string
	lastModified time.Time
}

// Store is the in-memory storage.Store driver.
type Store struct {
	mu         sync.RWMutex
	fs         afero.Fs
	nextID     uint64
	containers map[string]map[string]*object
	errors     map[string]error
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		fs:         afero.NewMemMapFs(),
		containers: make(map[string]map[string]*object),
		errors:     make(map[string]error),
	}
}

// SetError configures the store to fail operations on the given key with err.
func (s *Store) SetError(container, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[container+"\x00"+key] = err
}

// ClearError removes a configured error for the given key.
func (s *Store) ClearError(container, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, container+"\x00"+key)
}

// ObjectCount returns the number of stored objects across all containers.
func (s *Store) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, objects := range s.containers {
		count += len(objects)
	}
	return count
}

// injected returns the configured fault for (container, key), if any.
func (s *Store) injected(container, key string) error {
	return s.errors[container+"\x00"+key]
}

func (s *Store) EnsureContainer(ctx context.Context, container string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("ensure_container", container, "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[container]; ok {
		return false, nil
	}
	s.containers[container] = make(map[string]*object)
	return true, nil
}

func (s *Store) ContainerExists(ctx context.Context, container string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("container_exists", container, "", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.containers[container]
	return ok, nil
}

func (s *Store) DeleteContainer(ctx context.Context, container string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete_container", container, "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.containers[container]
	if !ok {
		return nil
	}
	for _, obj := range objects {
		s.fs.Remove(obj.file)
	}
	delete(s.containers, container)
	return nil
}

func (s *Store) Put(ctx context.Context, container, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return wrap("put", container, key, err)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return wrap("put", container, key, err)
	}
	if int64(len(data)) != size {
		return wrap("put", container, key, fmt.Errorf("size mismatch: declared %d, read %d", size, len(data)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(container, key); err != nil {
		return wrap("put", container, key, err)
	}

	objects, ok := s.containers[container]
	if !ok {
		return wrap("put", container, key, storage.ErrNotFound)
	}

	s.nextID++
	file := fmt.Sprintf("objects/obj-%d", s.nextID)
	if err := afero.WriteFile(s.fs, file, data, 0644); err != nil {
		return wrap("put", container, key, err)
	}

	if old, ok := objects[key]; ok {
		s.fs.Remove(old.file)
	}
	objects[key] = &object{
		file:         file,
		size:         size,
		etag:         fmt.Sprintf("%x", md5.Sum(data)),
		contentType:  opts.ContentType,
		metadata:     cloneMetadata(opts.Metadata),
		lastModified: time.Now().UTC(),
	}
	return nil
}

func (s *Store) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get", container, key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.injected(container, key); err != nil {
		return nil, wrap("get", container, key, err)
	}

	obj, err := s.lookup(container, key)
	if err != nil {
		return nil, wrap("get", container, key, err)
	}

	f, err := s.fs.Open(obj.file)
	if err != nil {
		return nil, wrap("get", container, key, err)
	}
	return f, nil
}

func (s *Store) Stat(ctx context.Context, container, key string) (*storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("stat", container, key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.injected(container, key); err != nil {
		return nil, wrap("stat", container, key, err)
	}

	obj, err := s.lookup(container, key)
	if err != nil {
		return nil, wrap("stat", container, key, err)
	}
	return obj.info(key), nil
}

func (s *Store) Delete(ctx context.Context, container, key string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete", container, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(container, key); err != nil {
		return wrap("delete", container, key, err)
	}

	objects, ok := s.containers[container]
	if !ok {
		return nil
	}
	obj, ok := objects[key]
	if !ok {
		// Absent object counts as deleted
		return nil
	}
	s.fs.Remove(obj.file)
	delete(objects, key)
	return nil
}

func (s *Store) Copy(ctx context.Context, container, srcKey, dstKey string, opts storage.CopyOptions) error {
	if err := ctx.Err(); err != nil {
		return wrap("copy", container, srcKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(container, srcKey); err != nil {
		return wrap("copy", container, srcKey, err)
	}

	src, err := s.lookup(container, srcKey)
	if err != nil {
		return wrap("copy", container, srcKey, err)
	}

	data, err := afero.ReadFile(s.fs, src.file)
	if err != nil {
		return wrap("copy", container, srcKey, err)
	}

	s.nextID++
	file := fmt.Sprintf("objects/obj-%d", s.nextID)
	if err := afero.WriteFile(s.fs, file, data, 0644); err != nil {
		return wrap("copy", container, srcKey, err)
	}

	metadata := cloneMetadata(src.metadata)
	if opts.ReplaceMetadata {
		metadata = cloneMetadata(opts.Metadata)
	}

	objects := s.containers[container]
	if old, ok := objects[dstKey]; ok {
		s.fs.Remove(old.file)
	}
	objects[dstKey] = &object{
		file:         file,
		size:         src.size,
		etag:         src.etag,
		contentType:  src.contentType,
		metadata:     metadata,
		lastModified: time.Now().UTC(),
	}
	return nil
}

func (s *Store) List(ctx context.Context, container, prefix string, recursive bool) ([]storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("list", container, prefix, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, ok := s.containers[container]
	if !ok {
		return nil, wrap("list", container, prefix, storage.ErrNotFound)
	}

	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var result []storage.ObjectInfo
	seenPrefixes := make(map[string]bool)
	for _, key := range keys {
		rest := key[len(prefix):]

		if !recursive {
			if idx := strings.Index(rest, "/"); idx >= 0 {
				// Deeper keys collapse into one common-prefix entry
				common := prefix + rest[:idx+1]
				if !seenPrefixes[common] {
					seenPrefixes[common] = true
					result = append(result, storage.ObjectInfo{Key: common, IsPrefix: true})
				}
				continue
			}
		}

		result = append(result, *objects[key].info(key))
	}
	return result, nil
}

// lookup returns the object under (container, key), mapping absence of either
// onto ErrNotFound. Callers hold s.mu.
func (s *Store) lookup(container, key string) (*object, error) {
	objects, ok := s.containers[container]
	if !ok {
		return nil, storage.ErrNotFound
	}
	obj, ok := objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return obj, nil
}

func (o *object) info(key string) *storage.ObjectInfo {
	return &storage.ObjectInfo{
		Key:          key,
		Size:         o.size,
		LastModified: o.lastModified,
		ETag:         o.etag,
		ContentType:  o.contentType,
		Metadata:     cloneMetadata(o.metadata),
	}
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(metadata))
	for k, v := range metadata {
		clone[strings.ToLower(k)] = v
	}
	return clone
}

func wrap(op, container, key string, err error) error {
	return &storage.StorageError{Op: op, Container: container, Key: key, Err: err}
}
