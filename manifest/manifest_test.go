package manifest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/internal/blobtest"
	"github.com/hupe1980/vectable/schema"
)

func testSchema() *schema.Schema {
	return schema.MustDefine(schema.Vector("vector", 3), schema.String("image_location"))
}

func ref(id string, rows int) fragment.Ref {
	return fragment.Ref{ID: id, Path: fragment.PathFor(id), Rows: rows, Size: 100, Checksum: 7}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "images/manifest/", Prefix("images"))
	assert.Equal(t, "images/manifest/00000000000000000007.manifest", Name("images", 7))

	v, ok := parseName("images", Name("images", 123))
	assert.True(t, ok)
	assert.Equal(t, uint64(123), v)

	table, v, ok := ParseName("a/b/manifest/00000000000000000042.manifest")
	assert.True(t, ok)
	assert.Equal(t, "a/b", table)
	assert.Equal(t, uint64(42), v)

	for _, bad := range []string{
		"images/manifest/7.manifest",
		"images/manifest/0000000000000000000x.manifest",
		"images/manifest/00000000000000000007.tmp",
		"other/manifest/00000000000000000007.manifest",
	} {
		_, ok := parseName("images", bad)
		assert.False(t, ok, bad)
	}
}

func TestCreateInitialAndReadCurrent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	_, err := m.ReadCurrent(ctx, "images")
	assert.ErrorIs(t, err, ErrTableNotFound)

	initial, err := m.CreateInitial(ctx, "images", testSchema(), distance.MetricL2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), initial.Version)
	assert.Empty(t, initial.Fragments)

	_, err = m.CreateInitial(ctx, "images", testSchema(), distance.MetricL2)
	assert.ErrorIs(t, err, ErrTableAlreadyExists)

	cur, err := m.ReadCurrent(ctx, "images")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cur.Version)
	assert.Equal(t, "images", cur.Table)
	assert.True(t, testSchema().Equal(cur.Schema))
	assert.Equal(t, 0, cur.RowCount())
}

func TestPublishAppendsAndDetectsConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	v0, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricCosine)
	require.NoError(t, err)

	v1, err := m.Publish(ctx, v0, []fragment.Ref{ref("a", 2)}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1.Version)
	assert.Equal(t, uint64(0), v1.Parent)

	// A second writer still holding v0 loses.
	_, err = m.Publish(ctx, v0, []fragment.Ref{ref("b", 3)}, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)

	cur, err := m.ReadCurrent(ctx, "t")
	require.NoError(t, err)
	v2, err := m.Publish(ctx, cur, []fragment.Ref{ref("b", 3)}, nil)
	require.NoError(t, err)

	cur, err = m.ReadCurrent(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, v2.Version, cur.Version)
	assert.Equal(t, []fragment.Ref{ref("a", 2), ref("b", 3)}, cur.Fragments)
	assert.Equal(t, distance.MetricCosine, cur.Metric)
	assert.Equal(t, 5, cur.RowCount())

	versions, err := m.ListVersions(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, versions)

	old, err := m.ReadVersion(ctx, "t", 1)
	require.NoError(t, err)
	assert.Len(t, old.Fragments, 1)

	_, err = m.ReadVersion(ctx, "t", 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)
	_, err = m.ReadVersion(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestPublishRejectsDuplicateFragment(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	v0, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)
	v1, err := m.Publish(ctx, v0, []fragment.Ref{ref("a", 1)}, nil)
	require.NoError(t, err)

	_, err = m.Publish(ctx, v1, []fragment.Ref{ref("a", 1)}, nil)
	assert.Error(t, err)
}

func TestDeletions(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	v0, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)
	v1, err := m.Publish(ctx, v0, []fragment.Ref{ref("a", 4), ref("b", 2)}, nil)
	require.NoError(t, err)

	v2, err := m.Publish(ctx, v1, nil, map[string]*roaring.Bitmap{"a": roaring.BitmapOf(1, 3)})
	require.NoError(t, err)
	v3, err := m.Publish(ctx, v2, nil, map[string]*roaring.Bitmap{"a": roaring.BitmapOf(0), "b": roaring.New()})
	require.NoError(t, err)

	cur, err := m.ReadCurrent(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, v3.Version, cur.Version)
	assert.True(t, cur.IsDeleted("a", 0))
	assert.True(t, cur.IsDeleted("a", 1))
	assert.False(t, cur.IsDeleted("a", 2))
	assert.True(t, cur.IsDeleted("a", 3))
	assert.False(t, cur.IsDeleted("b", 0))
	assert.Equal(t, 3, cur.RowCount())

	// Older versions keep their own deletion state.
	assert.False(t, v1.IsDeleted("a", 1))
	assert.Equal(t, 2, v2.DeletedRows("a"))

	_, err = m.Publish(ctx, cur, nil, map[string]*roaring.Bitmap{"zzz": roaring.BitmapOf(0)})
	assert.Error(t, err)
}

func TestConcurrentPublishers(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())
	_, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				cur, err := m.ReadCurrent(ctx, "t")
				if !assert.NoError(t, err) {
					return
				}
				_, err = m.Publish(ctx, cur, []fragment.Ref{ref(fmt.Sprintf("f%02d", i), 1)}, nil)
				if err == nil {
					return
				}
				if !assert.ErrorIs(t, err, ErrVersionConflict) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	cur, err := m.ReadCurrent(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), cur.Version)
	assert.Len(t, cur.Fragments, writers)

	seen := map[string]int{}
	for _, r := range cur.Fragments {
		seen[r.ID]++
	}
	for i := 0; i < writers; i++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("f%02d", i)])
	}
}

func TestCodecRoundTripAndCorruption(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	man := &Manifest{
		Version:   4,
		Parent:    3,
		Table:     "images",
		Schema:    testSchema(),
		Metric:    distance.MetricDot,
		Fragments: []fragment.Ref{ref("a", 10), ref("b", 1)},
		Deletions: map[string]*roaring.Bitmap{"a": roaring.BitmapOf(2, 9)},
		CreatedAt: created,
	}

	data, err := man.MarshalBinary()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, man.Version, got.Version)
	assert.Equal(t, man.Parent, got.Parent)
	assert.Equal(t, man.Table, got.Table)
	assert.Equal(t, man.Metric, got.Metric)
	assert.Equal(t, man.Fragments, got.Fragments)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, got.IsDeleted("a", 9))
	assert.True(t, man.Schema.Equal(got.Schema))

	bad := append([]byte(nil), data...)
	bad[len(bad)-1] ^= 0x01
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(data[:10])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadCurrentCorruptManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	_, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Name("t", 1), []byte("garbage")))

	_, err = m.ReadCurrent(ctx, "t")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestPublishStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := blobtest.NewFaultyStore(blobstore.NewMemoryStore())
	m := NewManager(store)

	v0, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)

	store.AddFault(blobtest.Fault{Op: blobtest.OpPutIfAbsent, Pattern: "manifest/"})
	_, err = m.Publish(ctx, v0, []fragment.Ref{ref("a", 1)}, nil)
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.NotErrorIs(t, err, ErrVersionConflict)

	store.Reset()
	cur, err := m.ReadCurrent(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cur.Version)
}

func TestLocalStoreCommits(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewLocalStore(t.TempDir()))

	v0, err := m.CreateInitial(ctx, "t", testSchema(), distance.MetricL2)
	require.NoError(t, err)
	_, err = m.Publish(ctx, v0, []fragment.Ref{ref("a", 1)}, nil)
	require.NoError(t, err)
	_, err = m.Publish(ctx, v0, []fragment.Ref{ref("b", 1)}, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
