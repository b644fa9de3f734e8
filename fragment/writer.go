package fragment

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/internal/hash"
	"github.com/hupe1980/vectable/schema"
)

// Writer serializes row batches into immutable fragments.
type Writer struct {
	store       blobstore.Store
	compression Compression
	newID       func() (string, error)
}

// Option configures a Writer.
type Option func(*Writer)

// WithCompression sets the column block compression. Default: CompressionZSTD.
func WithCompression(c Compression) Option {
	return func(w *Writer) { w.compression = c }
}

// WithIDGenerator overrides fragment id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(w *Writer) { w.newID = fn }
}

// NewWriter creates a Writer storing fragments in store.
func NewWriter(store blobstore.Store, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		compression: CompressionZSTD,
		newID:       newUUIDv7,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Write encodes rows as one fragment and stores it below location with a single Put.
// The returned Ref is readable once Write returns. On failure no Ref is
// returned; a partially written blob is an unreferenced orphan.
func (w *Writer) Write(ctx context.Context, location string, s *schema.Schema, rows []schema.Row) (Ref, error) {
	if len(rows) == 0 {
		return Ref{}, ErrEmptyBatch
	}
	for i, r := range rows {
		if err := s.Validate(r); err != nil {
			return Ref{}, fmt.Errorf("row %d: %w", i, err)
		}
	}

	id, err := w.newID()
	if err != nil {
		return Ref{}, fmt.Errorf("%w: fragment id: %w", ErrStorageWrite, err)
	}

	data, err := encode(id, s, rows, w.compression)
	if err != nil {
		return Ref{}, err
	}

	ref := Ref{
		ID:       id,
		Path:     PathFor(id),
		Rows:     len(rows),
		Size:     int64(len(data)),
		Checksum: hash.CRC32C(data),
	}

	if err := w.store.Put(ctx, path.Join(location, ref.Path), data); err != nil {
		return Ref{}, fmt.Errorf("%w: %s: %w", ErrStorageWrite, ref.Path, err)
	}
	return ref, nil
}
