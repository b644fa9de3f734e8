package fragment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/internal/blobtest"
	"github.com/hupe1980/vectable/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Define(
		schema.Vector("vector", 4, schema.WithNullElements()),
		schema.String("image_location"),
		schema.String("image_description", schema.WithNullable()),
		schema.Int64("n", schema.WithNullable()),
		schema.Float64("score", schema.WithNullable()),
		schema.Bool("flag", schema.WithNullable()),
	)
	require.NoError(t, err)
	return s
}

func testRows(n int) []schema.Row {
	rows := make([]schema.Row, n)
	for i := range rows {
		vals := map[string]schema.Value{
			"image_location": fmt.Sprintf("s3://images/%d.png", i),
			"n":              int64(i),
			"score":          float64(i) / 2,
			"flag":           i%2 == 0,
		}
		if i%3 != 0 {
			vals["image_description"] = fmt.Sprintf("image %d", i)
		}
		rows[i] = schema.Row{Vector: []float32{float32(i), 1, 2, 3}, Values: vals}
	}
	return rows
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			s := testSchema(t)
			rows := testRows(50)
			rows[7].VectorNulls = []bool{false, true, false, false}
			rows[7].Vector[1] = 42 // null elements are stored as zero

			w := NewWriter(store, WithCompression(c))
			ref, err := w.Write(ctx, "images", s, rows)
			require.NoError(t, err)
			assert.Equal(t, 50, ref.Rows)
			assert.Equal(t, PathFor(ref.ID), ref.Path)

			data, err := blobstore.Get(ctx, store, "images/"+ref.Path)
			require.NoError(t, err)
			assert.Equal(t, ref.Size, int64(len(data)))

			f, err := NewReader(store).Read(ctx, "images", ref, s)
			require.NoError(t, err)
			assert.Equal(t, ref.ID, f.ID())
			assert.Equal(t, 50, f.Rows())
			assert.True(t, s.Equal(f.Schema()))

			for i, want := range rows {
				values := f.Values(i)
				if i == 7 {
					assert.Equal(t, []float32{7, 0, 2, 3}, f.Vector(i))
					assert.Equal(t, []bool{false, true, false, false}, f.VectorNulls(i))
				} else {
					assert.Equal(t, want.Vector, f.Vector(i))
					assert.Nil(t, f.VectorNulls(i))
				}
				assert.Equal(t, want.Values["image_location"], values["image_location"])
				assert.Equal(t, want.Values["image_description"], values["image_description"])
				assert.Equal(t, want.Values["n"], values["n"])
				assert.Equal(t, want.Values["score"], values["score"])
				assert.Equal(t, want.Values["flag"], values["flag"])
			}

			v, ok := f.Value("image_description", 0)
			assert.True(t, ok)
			assert.Nil(t, v)
			_, ok = f.Value("missing", 0)
			assert.False(t, ok)

			projected := f.Values(1, "image_location", "missing")
			assert.Equal(t, map[string]schema.Value{"image_location": "s3://images/1.png"}, projected)
		})
	}
}

func TestWriteEmptyBatch(t *testing.T) {
	_, err := NewWriter(blobstore.NewMemoryStore()).Write(context.Background(), "t", testSchema(t), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestWriteRejectsInvalidRows(t *testing.T) {
	store := blobstore.NewMemoryStore()
	rows := testRows(2)
	rows[1].Vector = []float32{1}

	_, err := NewWriter(store).Write(context.Background(), "t", testSchema(t), rows)
	assert.ErrorIs(t, err, schema.ErrSchemaMismatch)
	assert.Zero(t, store.Len())
}

func TestWriteRejectsOversizedStringColumn(t *testing.T) {
	old := maxBlockSize
	maxBlockSize = 64
	t.Cleanup(func() { maxBlockSize = old })

	store := blobstore.NewMemoryStore()
	rows := testRows(2)
	rows[0].Values["image_location"] = string(make([]byte, 40))
	rows[1].Values["image_location"] = string(make([]byte, 40))

	_, err := NewWriter(store, WithCompression(CompressionNone)).Write(context.Background(), "t", testSchema(t), rows)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.ErrorContains(t, err, "image_location")
	assert.Zero(t, store.Len())
}

func TestWriteStorageFailure(t *testing.T) {
	store := blobtest.NewFaultyStore(blobstore.NewMemoryStore())
	store.AddFault(blobtest.Fault{Op: blobtest.OpPut, Pattern: "fragments/", Partial: true})

	ref, err := NewWriter(store).Write(context.Background(), "t", testSchema(t), testRows(3))
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.ErrorIs(t, err, blobtest.ErrInjected)
	assert.Equal(t, Ref{}, ref)
}

func TestFragmentIDsAreTimeOrdered(t *testing.T) {
	store := blobstore.NewMemoryStore()
	w := NewWriter(store)
	s := testSchema(t)

	var prev string
	for i := 0; i < 20; i++ {
		ref, err := w.Write(context.Background(), "t", s, testRows(1))
		require.NoError(t, err)
		assert.Greater(t, ref.ID, prev)
		prev = ref.ID
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	s := testSchema(t)

	ref, err := NewWriter(store).Write(ctx, "t", s, testRows(5))
	require.NoError(t, err)

	data, err := blobstore.Get(ctx, store, "t/"+ref.Path)
	require.NoError(t, err)

	t.Run("FlippedByte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-3] ^= 0xff
		require.NoError(t, store.Put(ctx, "t/"+ref.Path, bad))

		_, err := NewReader(store).Read(ctx, "t", ref, s)
		assert.ErrorIs(t, err, ErrCorrupt)

		// Without the manifest checksum the envelope checksum still catches it.
		noSum := ref
		noSum.Checksum = 0
		_, err = NewReader(store).Read(ctx, "t", noSum, s)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Truncated", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "t/"+ref.Path, data[:len(data)/2]))

		_, err := NewReader(store).Read(ctx, "t", ref, s)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "t/"+ref.Path, data))

		other := schema.MustDefine(schema.Vector("vector", 4))
		_, err := NewReader(store).Read(ctx, "t", ref, other)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Missing", func(t *testing.T) {
		missing := ref
		missing.Path = PathFor("nope")
		_, err := NewReader(store).Read(ctx, "t", missing, s)
		assert.ErrorIs(t, err, ErrStorageRead)
		assert.True(t, IsNotFound(err))
	})
}

func TestReaderCache(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	store := blobtest.NewFaultyStore(inner)
	s := testSchema(t)

	ref, err := NewWriter(store).Write(ctx, "t", s, testRows(3))
	require.NoError(t, err)

	r := NewReader(store, WithCacheSize(4))
	f1, err := r.Read(ctx, "t", ref, s)
	require.NoError(t, err)
	f2, err := r.Read(ctx, "t", ref, s)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, 1, store.Calls(blobtest.OpOpen))
	assert.Equal(t, 1, r.CacheLen())
}

// blockingStore holds every Open until release is closed.
type blockingStore struct {
	blobstore.Store
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Store.Open(ctx, name)
}

func TestReaderSharedLoadSurvivesCallerCancel(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	s := testSchema(t)

	ref, err := NewWriter(inner).Write(ctx, "t", s, testRows(5))
	require.NoError(t, err)

	store := &blockingStore{Store: inner, started: make(chan struct{}, 1), release: make(chan struct{})}
	r := NewReader(store, WithCacheSize(4))

	first, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Read(first, "t", ref, s)
		firstErr <- err
	}()

	select {
	case <-store.started:
	case <-time.After(5 * time.Second):
		t.Fatal("load did not start")
	}
	cancel()

	err = <-firstErr
	assert.ErrorIs(t, err, ErrStorageRead)
	assert.ErrorIs(t, err, context.Canceled)

	type result struct {
		f   *Fragment
		err error
	}
	second := make(chan result, 1)
	go func() {
		f, err := r.Read(ctx, "t", ref, s)
		second <- result{f, err}
	}()
	close(store.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 5, res.f.Rows())
	assert.Equal(t, 1, r.CacheLen())
}

func TestReaderCacheBytes(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	s := testSchema(t)
	w := NewWriter(store)

	refs := make([]Ref, 3)
	for i := range refs {
		ref, err := w.Write(ctx, "t", s, testRows(10))
		require.NoError(t, err)
		refs[i] = ref
	}

	sample, err := NewReader(store).Read(ctx, "t", refs[0], s)
	require.NoError(t, err)
	size := sample.SizeBytes()
	require.Positive(t, size)

	r := NewReader(store, WithCacheBytes(2*size-1))
	var last *Fragment
	for _, ref := range refs {
		last, err = r.Read(ctx, "t", ref, s)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, r.CacheLen())
	assert.Equal(t, size, r.CacheBytes())

	again, err := r.Read(ctx, "t", refs[2], s)
	require.NoError(t, err)
	assert.Same(t, last, again)
}

func TestReaderRateLimit(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	s := testSchema(t)

	ref, err := NewWriter(store).Write(ctx, "t", s, testRows(10))
	require.NoError(t, err)

	// The burst is smaller than the fragment, so the read is split into chunks.
	r := NewReader(store, WithReadRateLimit(1<<30, 64))
	f, err := r.Read(ctx, "t", ref, s)
	require.NoError(t, err)
	assert.Equal(t, 10, f.Rows())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewReader(store, WithReadRateLimit(1, 1))
	_, err = slow.Read(canceled, "t", ref, s)
	assert.ErrorIs(t, err, ErrStorageRead)
}

func TestCompressionBlocks(t *testing.T) {
	compressible := make([]byte, 4096)
	random := make([]byte, 256)
	for i := range random {
		random[i] = byte(i*131 + 17)
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, data := range [][]byte{nil, compressible, random} {
			block, err := compressBlock(data, c)
			require.NoError(t, err)

			got, err := decompressBlock(block, c)
			require.NoError(t, err)
			assert.Equal(t, len(data), len(got))
			if len(data) > 0 {
				assert.Equal(t, data, got)
			}
		}
	}

	block, err := compressBlock(compressible, CompressionZSTD)
	require.NoError(t, err)
	assert.Less(t, len(block), len(compressible)/2)

	_, err = decompressBlock([]byte{1, 2, 3}, CompressionNone)
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
