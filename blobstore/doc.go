// Package blobstore provides the storage abstraction tables are persisted on.
//
// A Store holds immutable blobs (fragments, manifests) addressed by
// slash-separated names. Table state is never mutated in place: fragments are
// written once, and each table version is a new manifest blob created with
// ConditionalStore.PutIfAbsent, which is the only compare-and-swap primitive
// the engine needs.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process store for tests and ephemeral tables
//   - LocalStore: local filesystem with mmap-backed reads
//   - s3.Store: Amazon S3 with range reads and If-None-Match conditional writes
//   - s3.DDBCommitStore: DynamoDB-coordinated commits for any Store
//   - minio.Store: MinIO and other S3-compatible object storage
//
// # Custom Implementations
//
// Implement ConditionalStore to support custom storage backends:
//
//	type ConditionalStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error          // Atomic write
//	    PutIfAbsent(ctx, name, data) error  // Atomic create, ErrConflict if present
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
