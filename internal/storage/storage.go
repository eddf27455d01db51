// Package storage defines the key-addressed blob store contract consumed by
// the checkpoint store and its local-file reference implementation.
package storage

import (
	"errors"
	"time"
)

// ErrKind classifies a storage failure so callers can branch without string
// matching.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	ErrNotFound
	ErrIO
	ErrSerialization
	ErrDeserialization
	ErrConnection
	ErrConfiguration
	ErrPermissionDenied
	ErrBackend
)

// Error wraps an underlying cause with a storage ErrKind.
type Error struct {
	Kind ErrKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return e.Err.Error() + " (key=" + e.Key + ")"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrKind, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Key: key, Err: err}
}

// IsNotFound reports whether err (or a wrapped cause) is a NotFound error.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrNotFound
}

// Metadata describes a stored object without requiring the full payload.
type Metadata struct {
	Key         string
	Size        int64
	ModifiedAt  time.Time
	ContentType string
}

// ListResult is one page of a prefix listing.
type ListResult struct {
	Items      []string
	NextCursor string
}

// Backend is a key-addressed blob store. Implementations must be safe for
// concurrent use by multiple goroutines.
type Backend interface {
	Write(key string, data []byte) error
	Read(key string) ([]byte, error)
	Exists(key string) (bool, error)
	Delete(key string) error
	DeleteMany(keys []string) error
	List(prefix string, limit int, cursor string) (ListResult, error)
	Metadata(key string) (Metadata, error)
	BackendType() string
	IsAvailable() bool

	// AppendLine appends a single newline-terminated line to key using
	// append-mode semantics with a durable sync after the write, as
	// required by the event log's line-atomic-append invariant.
	AppendLine(key string, line []byte) error
}
