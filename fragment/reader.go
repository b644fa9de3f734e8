package fragment

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/internal/hash"
	"github.com/hupe1980/vectable/schema"
)

// Reader loads and decodes fragments.
//
// Decoded fragments can be kept in an LRU bounded by entry count and,
// optionally, by decoded bytes. Fragments are immutable, so a cached entry
// never goes stale.
type Reader struct {
	store       blobstore.Store
	cache       *lru.Cache[string, *Fragment]
	maxBytes    int64
	cachedBytes atomic.Int64
	limiter     *rate.Limiter
	group       singleflight.Group
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

type readerOptions struct {
	cacheSize  int
	cacheBytes int64
	bytesPerS  float64
	burstBytes int
}

// defaultCacheEntries bounds the entry count when only a byte budget is set.
const defaultCacheEntries = 1 << 16

// WithCacheSize keeps up to n decoded fragments in memory. 0 disables caching.
func WithCacheSize(n int) ReaderOption {
	return func(o *readerOptions) { o.cacheSize = n }
}

// WithCacheBytes bounds the cache by the decoded size of its fragments. The
// most recently read fragment is always kept, even if it alone exceeds n.
func WithCacheBytes(n int64) ReaderOption {
	return func(o *readerOptions) { o.cacheBytes = n }
}

// WithReadRateLimit throttles fragment reads to bytesPerSecond with the given burst.
func WithReadRateLimit(bytesPerSecond float64, burst int) ReaderOption {
	return func(o *readerOptions) {
		o.bytesPerS = bytesPerSecond
		o.burstBytes = burst
	}
}

// NewReader creates a Reader over store.
func NewReader(store blobstore.Store, opts ...ReaderOption) *Reader {
	var o readerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reader{store: store, maxBytes: o.cacheBytes}
	entries := o.cacheSize
	if entries <= 0 && o.cacheBytes > 0 {
		entries = defaultCacheEntries
	}
	if entries > 0 {
		// lru.NewWithEvict only fails for non-positive sizes.
		r.cache, _ = lru.NewWithEvict(entries, func(_ string, f *Fragment) {
			r.cachedBytes.Add(-f.SizeBytes())
		})
	}
	if o.bytesPerS > 0 {
		burst := o.burstBytes
		if burst <= 0 {
			burst = int(o.bytesPerS)
		}
		r.limiter = rate.NewLimiter(rate.Limit(o.bytesPerS), max(burst, 1))
	}
	return r
}

// CacheLen returns the number of cached fragments.
func (r *Reader) CacheLen() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// CacheBytes returns the decoded size of the cached fragments.
func (r *Reader) CacheBytes() int64 { return r.cachedBytes.Load() }

func (r *Reader) remember(key string, f *Fragment) {
	if r.cache == nil {
		return
	}
	if ok, _ := r.cache.ContainsOrAdd(key, f); ok {
		return
	}
	r.cachedBytes.Add(f.SizeBytes())
	for r.maxBytes > 0 && r.cachedBytes.Load() > r.maxBytes && r.cache.Len() > 1 {
		r.cache.RemoveOldest()
	}
}

// Read loads the fragment ref below location. If expected is non-nil the
// fragment schema must equal it.
func (r *Reader) Read(ctx context.Context, location string, ref Ref, expected *schema.Schema) (*Fragment, error) {
	name := path.Join(location, ref.Path)
	key := fmt.Sprintf("%s#%08x", name, ref.Checksum)

	if r.cache != nil {
		if f, ok := r.cache.Get(key); ok {
			return verifySchema(f, ref, expected)
		}
	}

	// The shared load must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		f, err := r.load(loadCtx, name, ref)
		if err != nil {
			return nil, err
		}
		r.remember(key, f)
		return f, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, ref.Path, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return verifySchema(res.Val.(*Fragment), ref, expected)
	}
}

func (r *Reader) load(ctx context.Context, name string, ref Ref) (*Fragment, error) {
	b, err := r.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, ref.Path, err)
	}
	defer func() { _ = b.Close() }()

	if ref.Size > 0 && b.Size() != ref.Size {
		return nil, fmt.Errorf("%w: %s: size %d, manifest says %d", ErrCorrupt, ref.Path, b.Size(), ref.Size)
	}
	if err := r.wait(ctx, b.Size()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, ref.Path, err)
	}

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, ref.Path, err)
	}
	if ref.Checksum != 0 && hash.CRC32C(data) != ref.Checksum {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, ref.Path)
	}

	f, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, ref.Path, err)
	}
	if f.id != ref.ID {
		return nil, fmt.Errorf("%w: %s: fragment id %q, manifest says %q", ErrCorrupt, ref.Path, f.id, ref.ID)
	}
	if f.rows != ref.Rows {
		return nil, fmt.Errorf("%w: %s: %d rows, manifest says %d", ErrCorrupt, ref.Path, f.rows, ref.Rows)
	}
	return f, nil
}

// wait blocks until n bytes may be read. WaitN rejects requests above the
// burst, so large reads are split.
func (r *Reader) wait(ctx context.Context, n int64) error {
	if r.limiter == nil {
		return nil
	}
	burst := int64(r.limiter.Burst())
	for n > 0 {
		chunk := min(n, burst)
		if err := r.limiter.WaitN(ctx, int(chunk)); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func verifySchema(f *Fragment, ref Ref, expected *schema.Schema) (*Fragment, error) {
	if expected != nil && !expected.Equal(f.schema) {
		return nil, fmt.Errorf("%w: %s: schema %s, table has %s", ErrCorrupt, ref.Path, f.schema, expected)
	}
	return f, nil
}

// IsNotFound reports whether err was caused by a missing fragment blob.
func IsNotFound(err error) bool {
	return errors.Is(err, blobstore.ErrNotFound)
}
