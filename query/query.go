package query

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
)

// Snapshot is the immutable table state a query runs against.
type Snapshot interface {
	// Dimension returns the vector dimension.
	Dimension() int
	// Refs returns the live fragments.
	Refs() []fragment.Ref
	// IsDeleted reports whether a row is hidden by a deletion vector.
	IsDeleted(fragmentID string, row int) bool
}

// Loader resolves fragment refs to decoded fragments.
type Loader interface {
	Load(ctx context.Context, ref fragment.Ref) (*fragment.Fragment, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context, ref fragment.Ref) (*fragment.Fragment, error)

// Load calls f(ctx, ref).
func (f LoaderFunc) Load(ctx context.Context, ref fragment.Ref) (*fragment.Fragment, error) {
	return f(ctx, ref)
}

// Options configures Nearest.
type Options struct {
	// Concurrency bounds the number of fragments scanned in parallel.
	Concurrency int
	// MaxDistance drops hits farther than this distance when HasMaxDistance is set.
	MaxDistance    float32
	HasMaxDistance bool
}

// Option configures a query.
type Option func(*Options)

// WithConcurrency bounds parallel fragment scans. Values <= 0 select GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithMaxDistance keeps only hits with distance <= d.
func WithMaxDistance(d float32) Option {
	return func(o *Options) {
		o.MaxDistance = d
		o.HasMaxDistance = true
	}
}

// Nearest returns the k rows of snap closest to q under metric.
//
// Every live fragment is scanned exactly. The result is sorted by
// (distance asc, fragment id asc, row asc) and therefore identical across runs
// for the same snapshot. Fewer than k live rows yield all of them.
func Nearest(ctx context.Context, snap Snapshot, loader Loader, q []float32, k int, metric distance.Metric, optFns ...Option) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if dim := snap.Dimension(); len(q) != dim {
		return nil, fmt.Errorf("%w: query has %d elements, table has %d", ErrDimensionMismatch, len(q), dim)
	}
	for _, v := range q {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrInvalidVector
		}
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unsupported metric: %v", metric)
	}

	opts := Options{Concurrency: runtime.GOMAXPROCS(0)}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}

	refs := snap.Refs()
	if len(refs) == 0 {
		return []Hit{}, nil
	}

	score := newScorer(metric, q)
	partial := make([][]Hit, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			f, err := loader.Load(gctx, ref)
			if err != nil {
				return err
			}
			partial[i] = scan(gctx, snap, f, ref, k, score, &opts)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, p := range partial {
		n += len(p)
	}
	hits := make([]Hit, 0, n)
	for _, p := range partial {
		hits = append(hits, p...)
	}
	sort.Slice(hits, func(i, j int) bool { return less(hits[i], hits[j]) })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

const ctxCheckInterval = 4096

func scan(ctx context.Context, snap Snapshot, f *fragment.Fragment, ref fragment.Ref, k int, score func([]float32) float32, opts *Options) []Hit {
	h := newTopK(k, f.Rows())
	for row := 0; row < f.Rows(); row++ {
		if row%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil
		}
		if snap.IsDeleted(ref.ID, row) {
			continue
		}
		d := sanitize(score(f.Vector(row)))
		if opts.HasMaxDistance && d > opts.MaxDistance {
			continue
		}
		h.Push(Hit{FragmentID: ref.ID, Row: row, Distance: d, Fragment: f})
	}
	return h.Hits()
}

// newScorer binds q to the metric. Cosine caches the query norm.
func newScorer(metric distance.Metric, q []float32) func([]float32) float32 {
	if metric != distance.MetricCosine {
		fn := metric.Func()
		return func(v []float32) float32 { return fn(q, v) }
	}

	qn := distance.Norm(q)
	return func(v []float32) float32 {
		vn := distance.Norm(v)
		if qn == 0 || vn == 0 {
			return 1
		}
		return float32(1 - float64(distance.Dot(q, v))/(float64(qn)*float64(vn)))
	}
}
