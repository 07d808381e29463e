package storage

import (
	"context"
	"io"
)

// StorageEngine defines the interface for a storage backend that holds
// uploaded files addressed by their storage key. Keys are produced by the
// Gateway and are always single path segments.
type StorageEngine interface {
	// List returns a record for every published object. Ordering is whatever
	// the backend produces natively.
	List(ctx context.Context) ([]FileRecord, error)

	// Put stores content under key and must not make a partially written
	// object visible to List. If key is already taken it returns ErrKeyExists
	// without reading from content; a collision detected after content was
	// consumed is reported as an ordinary write error. size is the content
	// length, or -1 if unknown.
	Put(ctx context.Context, key string, content io.Reader, size int64) (FileRecord, error)

	// Open returns either a direct access reference or a readable stream for
	// the object stored under key. It returns ErrNotFound if there is none.
	Open(ctx context.Context, key string) (DownloadTarget, error)

	// Delete removes the object stored under key. It returns ErrNotFound if
	// there is none.
	Delete(ctx context.Context, key string) error
}
