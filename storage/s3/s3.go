// Package s3 implements the storage.Store contract over S3-compatible object
// storage using the MinIO SDK.
//
// Containers map to buckets. Object metadata is carried as S3 user metadata;
// the driver lowercases metadata keys on the way out because S3 responses
// canonicalize them.
//
// # Usage Example
//
//	store, err := s3.New(
//		"s3.example.com",
//		"access-key",
//		"secret-key",
//		true,  // use TLS
//		false, // debug mode
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = store.Put(ctx, "tenant-a", "docs/report.pdf",
//		bytes.NewReader(data), int64(len(data)),
//		storage.PutOptions{ContentType: "application/pdf"})
//
// All failures are returned as *storage.StorageError; 404 responses map to
// storage.ErrNotFound. The driver performs no retries.
package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/metrics"
	"github.com/blobcab/blobcab/storage"
)

// Store is the production storage.Store driver backed by an S3-compatible
// endpoint.
type Store struct {
	client *minio.Client
}

var _ storage.Store = (*Store)(nil)

// New initializes the MinIO client for the given endpoint. With debug set,
// every request and response is traced to stdout.
func New(endpoint, accessKeyID, secretAccessKey string, useSSL bool, debug bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		logger.Error("STORAGE: Failed to initialize MinIO client", "endpoint", endpoint, "error", err)
		return nil, &storage.StorageError{Op: "connect", Container: endpoint, Err: err}
	}

	if debug {
		client.TraceOn(os.Stdout)
	}

	return &Store{client: client}, nil
}

// EnsureContainer creates the bucket if it does not exist and reports whether
// this call created it. Losing a creation race to another client is not an
// error.
func (s *Store) EnsureContainer(ctx context.Context, container string) (bool, error) {
	start := time.Now()
	defer observe("ENSURE_CONTAINER", start)

	exists, err := s.client.BucketExists(ctx, container)
	if err != nil {
		countError("ENSURE_CONTAINER", err)
		metrics.StorageOperationsTotal.WithLabelValues("ENSURE_CONTAINER", "error").Inc()
		return false, wrap("ensure_container", container, "", err)
	}
	if exists {
		metrics.StorageOperationsTotal.WithLabelValues("ENSURE_CONTAINER", "success").Inc()
		return false, nil
	}

	if err := s.client.MakeBucket(ctx, container, minio.MakeBucketOptions{}); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) &&
			(resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists") {
			metrics.StorageOperationsTotal.WithLabelValues("ENSURE_CONTAINER", "success").Inc()
			return false, nil
		}
		countError("ENSURE_CONTAINER", err)
		metrics.StorageOperationsTotal.WithLabelValues("ENSURE_CONTAINER", "error").Inc()
		return false, wrap("ensure_container", container, "", err)
	}

	logger.Info("STORAGE: Created container", "container", container)
	metrics.StorageOperationsTotal.WithLabelValues("ENSURE_CONTAINER", "success").Inc()
	metrics.ContainersCreatedTotal.Inc()
	return true, nil
}

// ContainerExists reports whether the bucket exists.
func (s *Store) ContainerExists(ctx context.Context, container string) (bool, error) {
	start := time.Now()
	defer observe("CONTAINER_EXISTS", start)

	exists, err := s.client.BucketExists(ctx, container)
	if err != nil {
		countError("CONTAINER_EXISTS", err)
		metrics.StorageOperationsTotal.WithLabelValues("CONTAINER_EXISTS", "error").Inc()
		return false, wrap("container_exists", container, "", err)
	}
	metrics.StorageOperationsTotal.WithLabelValues("CONTAINER_EXISTS", "success").Inc()
	return exists, nil
}

// DeleteContainer removes the bucket and all of its content. A missing bucket
// is treated as already deleted. Force deletion is attempted first; endpoints
// that reject it fall back to an object sweep.
func (s *Store) DeleteContainer(ctx context.Context, container string) error {
	start := time.Now()
	defer observe("DELETE_CONTAINER", start)

	err := s.client.RemoveBucketWithOptions(ctx, container, minio.RemoveBucketOptions{ForceDelete: true})
	if err != nil {
		var resp minio.ErrorResponse
		switch {
		case errorIsNotFound(err):
			metrics.StorageOperationsTotal.WithLabelValues("DELETE_CONTAINER", "skipped").Inc()
			return nil
		case errors.As(err, &resp) && resp.Code == "BucketNotEmpty":
			if err := s.sweepContainer(ctx, container); err != nil {
				countError("DELETE_CONTAINER", err)
				metrics.StorageOperationsTotal.WithLabelValues("DELETE_CONTAINER", "error").Inc()
				return wrap("delete_container", container, "", err)
			}
			if err := s.client.RemoveBucket(ctx, container); err != nil && !errorIsNotFound(err) {
				countError("DELETE_CONTAINER", err)
				metrics.StorageOperationsTotal.WithLabelValues("DELETE_CONTAINER", "error").Inc()
				return wrap("delete_container", container, "", err)
			}
		default:
			countError("DELETE_CONTAINER", err)
			metrics.StorageOperationsTotal.WithLabelValues("DELETE_CONTAINER", "error").Inc()
			return wrap("delete_container", container, "", err)
		}
	}

	logger.Info("STORAGE: Deleted container", "container", container)
	metrics.StorageOperationsTotal.WithLabelValues("DELETE_CONTAINER", "success").Inc()
	metrics.ContainersDeletedTotal.Inc()
	return nil
}

// sweepContainer removes every object so the bucket itself can be deleted.
func (s *Store) sweepContainer(ctx context.Context, container string) error {
	for object := range s.client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return object.Err
		}
		if err := s.client.RemoveObject(ctx, container, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// Put uploads size bytes from body under key.
func (s *Store) Put(ctx context.Context, container, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	start := time.Now()

	_, err := s.client.PutObject(ctx, container, key, body, size, minio.PutObjectOptions{
		SendContentMd5: true,
		ContentType:    opts.ContentType,
		UserMetadata:   opts.Metadata,
	})
	if err != nil {
		countError("PUT", err)
		metrics.StorageOperationsTotal.WithLabelValues("PUT", "error").Inc()
	} else {
		metrics.StorageOperationsTotal.WithLabelValues("PUT", "success").Inc()
		if size > 0 {
			metrics.StorageBytesTransferred.WithLabelValues("upload").Add(float64(size))
		}
	}
	metrics.StorageOperationDuration.WithLabelValues("PUT").Observe(time.Since(start).Seconds())
	if err != nil {
		return wrap("put", container, key, err)
	}
	return nil
}

// Get opens the object for reading. The SDK defers the request until the
// first read, so absence is forced to the surface here with an eager stat on
// the stream.
func (s *Store) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	start := time.Now()

	object, err := s.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		countError("GET", err)
		metrics.StorageOperationsTotal.WithLabelValues("GET", "error").Inc()
		metrics.StorageOperationDuration.WithLabelValues("GET").Observe(time.Since(start).Seconds())
		return nil, wrap("get", container, key, err)
	}

	info, err := object.Stat()
	if err != nil {
		if closeErr := object.Close(); closeErr != nil {
			logger.Warn("STORAGE: Failed to close S3 object", "key", key, "error", closeErr)
		}
		countError("GET", err)
		metrics.StorageOperationsTotal.WithLabelValues("GET", "error").Inc()
		metrics.StorageOperationDuration.WithLabelValues("GET").Observe(time.Since(start).Seconds())
		return nil, wrap("get", container, key, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("GET", "success").Inc()
	metrics.StorageOperationDuration.WithLabelValues("GET").Observe(time.Since(start).Seconds())
	if info.Size > 0 {
		metrics.StorageBytesTransferred.WithLabelValues("download").Add(float64(info.Size))
	}
	return object, nil
}

// Stat returns the object's attributes, mapping 404 to storage.ErrNotFound.
func (s *Store) Stat(ctx context.Context, container, key string) (*storage.ObjectInfo, error) {
	start := time.Now()
	defer observe("STAT", start)

	info, err := s.client.StatObject(ctx, container, key, minio.StatObjectOptions{})
	if err != nil {
		if errorIsNotFound(err) {
			metrics.StorageOperationsTotal.WithLabelValues("STAT", "not_found").Inc()
		} else {
			countError("STAT", err)
			metrics.StorageOperationsTotal.WithLabelValues("STAT", "error").Inc()
		}
		return nil, wrap("stat", container, key, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("STAT", "success").Inc()
	return objectInfo(info), nil
}

// Delete removes the object. The object is stat'ed first so deleting
// something already gone is a silent no-op, and so versioned backends remove
// the exact version observed.
func (s *Store) Delete(ctx context.Context, container, key string) error {
	start := time.Now()

	info, err := s.client.StatObject(ctx, container, key, minio.StatObjectOptions{})
	if err != nil {
		if errorIsNotFound(err) {
			logger.Debug("STORAGE: Object does not exist - skipping deletion", "container", container, "key", key)
			metrics.StorageOperationsTotal.WithLabelValues("DELETE", "skipped").Inc()
			metrics.StorageOperationDuration.WithLabelValues("DELETE").Observe(time.Since(start).Seconds())
			return nil
		}
		countError("DELETE", err)
		metrics.StorageOperationsTotal.WithLabelValues("DELETE", "error").Inc()
		metrics.StorageOperationDuration.WithLabelValues("DELETE").Observe(time.Since(start).Seconds())
		return wrap("delete", container, key, err)
	}

	err = s.client.RemoveObject(ctx, container, key, minio.RemoveObjectOptions{VersionID: info.VersionID})
	if err != nil {
		countError("DELETE", err)
		metrics.StorageOperationsTotal.WithLabelValues("DELETE", "error").Inc()
	} else {
		metrics.StorageOperationsTotal.WithLabelValues("DELETE", "success").Inc()
	}
	metrics.StorageOperationDuration.WithLabelValues("DELETE").Observe(time.Since(start).Seconds())
	if err != nil {
		return wrap("delete", container, key, err)
	}
	return nil
}

// Copy duplicates srcKey to dstKey server-side. Without ReplaceMetadata the
// source object's metadata is carried over by the backend.
func (s *Store) Copy(ctx context.Context, container, srcKey, dstKey string, opts storage.CopyOptions) error {
	start := time.Now()
	defer observe("COPY", start)

	dst := minio.CopyDestOptions{
		Bucket: container,
		Object: dstKey,
	}
	if opts.ReplaceMetadata {
		dst.UserMetadata = opts.Metadata
		dst.ReplaceMetadata = true
	}
	src := minio.CopySrcOptions{
		Bucket: container,
		Object: srcKey,
	}

	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		if !errorIsNotFound(err) {
			countError("COPY", err)
		}
		metrics.StorageOperationsTotal.WithLabelValues("COPY", "error").Inc()
		return wrap("copy", container, srcKey, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("COPY", "success").Inc()
	return nil
}

// List drains the SDK's listing channel into a slice. Non-recursive listings
// apply the "/" delimiter server-side; collapsed common prefixes come back as
// entries with IsPrefix set.
func (s *Store) List(ctx context.Context, container, prefix string, recursive bool) ([]storage.ObjectInfo, error) {
	start := time.Now()
	defer observe("LIST", start)

	opts := minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    recursive,
		WithMetadata: true,
	}

	var objects []storage.ObjectInfo
	for object := range s.client.ListObjects(ctx, container, opts) {
		if object.Err != nil {
			countError("LIST", object.Err)
			metrics.StorageOperationsTotal.WithLabelValues("LIST", "error").Inc()
			return nil, wrap("list", container, prefix, object.Err)
		}

		entry := storage.ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ETag:         strings.Trim(object.ETag, "\""),
			ContentType:  object.ContentType,
			Metadata:     normalizeMetadata(object.UserMetadata),
		}
		if !recursive && strings.HasSuffix(object.Key, "/") && object.Key != prefix {
			entry.IsPrefix = true
		}
		objects = append(objects, entry)
	}

	metrics.StorageOperationsTotal.WithLabelValues("LIST", "success").Inc()
	return objects, nil
}

func objectInfo(info minio.ObjectInfo) *storage.ObjectInfo {
	return &storage.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         strings.Trim(info.ETag, "\""),
		ContentType:  info.ContentType,
		Metadata:     normalizeMetadata(info.UserMetadata),
	}
}

// normalizeMetadata lowercases user metadata keys and strips the x-amz-meta-
// prefix some response shapes include, so lookups behave the same across
// Stat, List and the memory driver.
func normalizeMetadata(raw map[string]string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, "x-amz-meta-")
		meta[k] = v
	}
	return meta
}

// errorIsNotFound reports whether err is the backend's object/bucket absence
// response.
func errorIsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if resp.StatusCode == 404 {
			return true
		}
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}

// wrap converts an SDK error into the package error model.
func wrap(op, container, key string, err error) error {
	if err == nil {
		return nil
	}
	if errorIsNotFound(err) {
		err = storage.ErrNotFound
	}
	return &storage.StorageError{Op: op, Container: container, Key: key, Err: err}
}

func observe(operation string, start time.Time) {
	metrics.StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func countError(operation string, err error) {
	metrics.StorageOperationErrors.WithLabelValues(operation, classifyError(err)).Inc()
}

// classifyError classifies backend errors for metrics tracking
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.Contains(errStr, "AccessDenied") || strings.Contains(errStr, "Forbidden"):
		return "access_denied"
	case strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "NotFound"):
		return "not_found"
	case strings.Contains(errStr, "SlowDown") || strings.Contains(errStr, "RequestLimitExceeded"):
		return "throttled"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network_error"
	default:
		return "unknown"
	}
}
