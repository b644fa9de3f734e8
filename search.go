package vectable

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/vectable/manifest"
	"github.com/hupe1980/vectable/query"
	"github.com/hupe1980/vectable/schema"
)

// Result is one row returned by Search.
type Result struct {
	// FragmentID and Row locate the row in storage.
	FragmentID string
	Row        int
	// Distance to the query vector under the search metric. Smaller is closer.
	Distance float32
	// Vector is set only when the vector column was requested with WithColumns.
	Vector []float32
	// Values holds the projected scalar columns. Null cells are nil.
	Values map[string]schema.Value
}

// String returns the string value of column, or "" if it is absent, null or not a string.
func (r Result) String(column string) string {
	s, _ := r.Values[column].(string)
	return s
}

// Search returns the k rows closest to vector, ordered by ascending distance
// and then by fragment id and row for equal distances.
//
// The current manifest is read once; rows committed while the search runs
// are not observed. A table with fewer than k rows returns all of them.
func (t *Table) Search(ctx context.Context, vector []float32, k int, optFns ...SearchOption) (results []Result, err error) {
	start := time.Now()
	var (
		version uint64
		scanned int
	)
	defer func() {
		t.conn.opts.metricsCollector.RecordSearch(k, scanned, time.Since(start), err)
		t.conn.opts.logger.LogSearch(ctx, t.name, k, len(results), version, err)
	}()

	var so searchOptions
	for _, fn := range optFns {
		fn(&so)
	}

	man, err := t.snapshot(ctx)
	if err != nil {
		return nil, translateError("search", t.name, err)
	}
	version = man.Version
	scanned = len(man.Fragments)

	columns, wantVector, err := projection(man.Schema, so.columns)
	if err != nil {
		return nil, newError(KindInvalidArgument, "search", t.name, err)
	}

	metric := man.Metric
	if so.metric != nil {
		metric = *so.metric
	}

	qopts := []query.Option{query.WithConcurrency(t.conn.opts.searchConcurrency)}
	if so.maxDistance != nil {
		qopts = append(qopts, query.WithMaxDistance(*so.maxDistance))
	}

	hits, err := query.Nearest(ctx, man, t.loader(man), vector, k, metric, qopts...)
	if err != nil {
		return nil, translateError("search", t.name, err)
	}

	results = make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			FragmentID: h.FragmentID,
			Row:        h.Row,
			Distance:   h.Distance,
			Values:     map[string]schema.Value{},
		}
		if len(columns) > 0 {
			results[i].Values = h.Fragment.Values(h.Row, columns...)
		}
		if wantVector {
			results[i].Vector = append([]float32(nil), h.Fragment.Vector(h.Row)...)
		}
	}
	return results, nil
}

// SearchSeq is Search as an iterator.
//
// Example:
//
//	for r, err := range table.SearchSeq(ctx, q, 100) {
//	    if err != nil { break }
//	    if r.Distance > threshold { break }
//	    process(r)
//	}
func (t *Table) SearchSeq(ctx context.Context, vector []float32, k int, optFns ...SearchOption) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		results, err := t.Search(ctx, vector, k, optFns...)
		if err != nil {
			yield(Result{}, err)
			return
		}
		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// projection resolves requested column names to scalar columns.
func projection(s *schema.Schema, names []string) ([]string, bool, error) {
	if len(names) == 0 {
		scalars := s.ScalarColumns()
		out := make([]string, len(scalars))
		for i, c := range scalars {
			out[i] = c.Name
		}
		return out, false, nil
	}

	var (
		out        []string
		wantVector bool
	)
	for _, name := range names {
		col, ok := s.Column(name)
		if !ok {
			return nil, false, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, name)
		}
		if col.Type == schema.TypeVector {
			wantVector = true
			continue
		}
		out = append(out, name)
	}
	return out, wantVector, nil
}

var _ query.Snapshot = (*manifest.Manifest)(nil)
