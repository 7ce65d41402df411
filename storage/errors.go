package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel error drivers map backend "no such object" and
// "no such container" responses onto. Callers that treat absence as a valid
// outcome check for it with IsNotFound.
var ErrNotFound = errors.New("not found")

// StorageError wraps a backend failure with the operation and target that
// produced it. All driver errors are returned as *StorageError; the underlying
// SDK error stays reachable through Unwrap.
type StorageError struct {
	Op        string
	Container string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Container, e.Err)
	}
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Container, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err represents plain absence of an object or
// container rather than a backend failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
