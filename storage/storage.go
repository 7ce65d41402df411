// Package storage defines the blob store contract the file manager is built
// on: opaque objects addressed by (container, key), with no filesystem
// semantics of their own.
//
// # Contract
//
// A Store holds named containers; each container is a flat namespace of keys
// mapped to immutable byte blobs plus a small metadata dictionary. Folder
// behavior is layered on top by the filemanager package purely through key
// prefixes ending in "/" — the store itself never interprets keys.
//
// Two drivers implement the contract:
//   - storage/s3: S3-compatible object storage via the MinIO SDK (production)
//   - storage/memory: in-process driver for tests and local development
//
// The conformance suite in storage/storagetest pins the semantics both
// drivers must share.
//
// # Error model
//
// Every failure is returned as a *StorageError carrying the operation,
// container and key. Absence of an object or container is signaled by
// wrapping ErrNotFound; check it with IsNotFound. Delete of a missing object
// and DeleteContainer of a missing container succeed silently.
//
// Stores perform no retries. Resilience (backoff, circuit breaking) is an
// opt-in decorator in pkg/resilient.
//
// # Listing
//
// List with recursive=true returns every object under the prefix in lexical
// key order. With recursive=false the "/" delimiter applies: keys whose
// remainder past the prefix contains "/" collapse into a single entry with
// IsPrefix set, the way S3 common prefixes work. A zero-byte placeholder
// object whose key equals the prefix itself is returned as a regular entry.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object, or a collapsed common prefix when
// IsPrefix is set (in which case only Key is meaningful).
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
	IsPrefix     bool
}

// PutOptions carries the attributes stored alongside object content.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// CopyOptions controls metadata handling during Copy. By default the source
// object's metadata is carried over; with ReplaceMetadata set, Metadata
// replaces it entirely.
type CopyOptions struct {
	Metadata        map[string]string
	ReplaceMetadata bool
}

// Store is the blob store the file manager operates against.
type Store interface {
	// EnsureContainer creates the container if it does not exist and reports
	// whether it was created by this call.
	EnsureContainer(ctx context.Context, container string) (bool, error)

	// ContainerExists reports whether the container exists.
	ContainerExists(ctx context.Context, container string) (bool, error)

	// DeleteContainer removes the container and everything in it. Removing a
	// container that does not exist is not an error.
	DeleteContainer(ctx context.Context, container string) error

	// Put stores size bytes from body under key, replacing any existing
	// object. size must match the data read from body.
	Put(ctx context.Context, container, key string, body io.Reader, size int64, opts PutOptions) error

	// Get opens the object content for reading. Absence is reported eagerly
	// as ErrNotFound, not on first read.
	Get(ctx context.Context, container, key string) (io.ReadCloser, error)

	// Stat returns the object's attributes, or ErrNotFound when absent.
	Stat(ctx context.Context, container, key string) (*ObjectInfo, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, container, key string) error

	// Copy duplicates srcKey to dstKey within the container.
	Copy(ctx context.Context, container, srcKey, dstKey string, opts CopyOptions) error

	// List returns the objects under prefix in lexical key order, applying
	// the "/" delimiter when recursive is false.
	List(ctx context.Context, container, prefix string, recursive bool) ([]ObjectInfo, error)
}
