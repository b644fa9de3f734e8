package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNotFound is returned when a blob does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	// The default maps to `os.ErrNotExist`.
	ErrNotFound = os.ErrNotExist

	// ErrConflict is returned by PutIfAbsent when the blob already exists.
	ErrConflict = errors.New("blob already exists")
)

// Store is an abstraction over object storage holding immutable blobs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically. Readers observe either the old or the new content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ConditionalStore is a Store that can create a blob only if it does not exist yet.
// It is the compare-and-swap primitive used for manifest publication.
type ConditionalStore interface {
	Store
	// PutIfAbsent writes data under name unless a blob with that name exists,
	// in which case it returns an error satisfying errors.Is(err, ErrConflict).
	PutIfAbsent(ctx context.Context, name string, data []byte) error
}

// Pinger is implemented by stores that can check reachability of their root.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Get opens the named blob and reads it completely.
func Get(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	return ReadAll(ctx, b)
}

// ReadAll reads the full content of b.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	size := b.Size()
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == size) {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("short read: got %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// Ping checks reachability of s if it implements Pinger.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
