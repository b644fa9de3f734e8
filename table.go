package vectable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/manifest"
	"github.com/hupe1980/vectable/query"
	"github.com/hupe1980/vectable/schema"
)

// errNothingToDelete stops a delete commit without publishing a version.
var errNothingToDelete = errors.New("nothing to delete")

// Table is a transient handle to one table.
//
// The handle remembers the last manifest it observed, but Add, Delete and
// Search always start from the current manifest in storage. A handle
// returned by Checkout is pinned to one version and is read-only.
type Table struct {
	conn     *Connection
	name     string
	location string
	pinned   bool

	mu      sync.RWMutex
	current *manifest.Manifest
}

func newTable(c *Connection, name, location string, man *manifest.Manifest, pinned bool) *Table {
	return &Table{
		conn:     c,
		name:     name,
		location: location,
		pinned:   pinned,
		current:  man,
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table schema. It never changes after creation.
func (t *Table) Schema() *schema.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Schema
}

// Metric returns the default distance metric of the table.
func (t *Table) Metric() distance.Metric {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Metric
}

// Version returns the last version this handle observed.
func (t *Table) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Version
}

// ReadOnly reports whether the handle is pinned to a historical version.
func (t *Table) ReadOnly() bool { return t.pinned }

func (t *Table) observe(man *manifest.Manifest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if man.Version > t.current.Version {
		t.current = man
	}
}

// snapshot returns the manifest an operation runs against: the pinned one,
// or the current one read fresh from storage.
func (t *Table) snapshot(ctx context.Context) (*manifest.Manifest, error) {
	if t.pinned {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.current, nil
	}
	man, err := t.conn.manifests.ReadCurrent(ctx, t.location)
	if err != nil {
		return nil, err
	}
	t.observe(man)
	return man, nil
}

// Refresh reloads the current manifest and returns its version.
func (t *Table) Refresh(ctx context.Context) (uint64, error) {
	man, err := t.snapshot(ctx)
	if err != nil {
		return 0, translateError("refresh", t.name, err)
	}
	return man.Version, nil
}

func (t *Table) writable(op string) error {
	if t.pinned {
		return newError(KindInvalidArgument, op, t.name,
			fmt.Errorf("%w: table is checked out at version %d", ErrInvalidArgument, t.Version()))
	}
	return nil
}

// Add appends rows as one fragment and publishes a new version.
//
// Rows are validated against the table schema first; validation failures are
// never retried. A lost publish race is retried on top of the new current
// version; when the retries run out Add fails with ErrWriteContention and the
// written fragment stays unreferenced. A failed Add never changes the
// visible table state.
func (t *Table) Add(ctx context.Context, rows ...schema.Row) (err error) {
	start := time.Now()
	attempts := 0
	var version uint64
	defer func() {
		t.conn.opts.metricsCollector.RecordAdd(len(rows), attempts, time.Since(start), err)
		t.conn.opts.logger.LogAdd(ctx, t.name, len(rows), version, attempts, err)
	}()

	if err := t.writable("add"); err != nil {
		return err
	}
	if len(rows) == 0 {
		return newError(KindEmptyBatch, "add", t.name, fragment.ErrEmptyBatch)
	}

	s := t.Schema()
	for i, r := range rows {
		if err := s.Validate(r); err != nil {
			return translateError("add", t.name, fmt.Errorf("row %d: %w", i, err))
		}
	}

	writeStart := time.Now()
	ref, err := t.conn.writer.Write(ctx, t.location, s, rows)
	t.conn.opts.metricsCollector.RecordFragmentWrite(ref.Size, time.Since(writeStart), err)
	if err != nil {
		return translateError("add", t.name, err)
	}

	base, err := t.conn.manifests.ReadCurrent(ctx, t.location)
	if err != nil {
		t.conn.opts.logger.LogOrphan(ctx, t.name, ref.Path)
		return translateError("add", t.name, err)
	}

	next, n, err := t.commit(ctx, base, func(context.Context, *manifest.Manifest) (change, error) {
		return change{refs: []fragment.Ref{ref}}, nil
	})
	attempts = n
	if err != nil {
		t.conn.opts.logger.LogOrphan(ctx, t.name, ref.Path)
		return translateError("add", t.name, err)
	}

	version = next.Version
	t.observe(next)
	return nil
}

// Delete hides every row whose column equals value and publishes a new
// version. A nil value matches null cells. Fragments are not rewritten; the
// rows are recorded in the manifest's deletion vectors. Delete returns the
// number of newly deleted rows. If nothing matches, no version is published.
func (t *Table) Delete(ctx context.Context, column string, value schema.Value) (deleted int, err error) {
	start := time.Now()
	var version uint64
	defer func() {
		t.conn.opts.metricsCollector.RecordDelete(deleted, time.Since(start), err)
		t.conn.opts.logger.LogDelete(ctx, t.name, deleted, version, err)
	}()

	if err := t.writable("delete"); err != nil {
		return 0, err
	}

	s := t.Schema()
	col, ok := s.Column(column)
	if !ok || col.Type == schema.TypeVector {
		return 0, newError(KindInvalidArgument, "delete", t.name,
			fmt.Errorf("%w: %q is not a scalar column", ErrInvalidArgument, column))
	}
	want, err := schema.Normalize(col.Type, value)
	if err != nil {
		return 0, newError(KindSchemaMismatch, "delete", t.name, fmt.Errorf("%w: %s: %w", schema.ErrSchemaMismatch, column, err))
	}

	base, err := t.conn.manifests.ReadCurrent(ctx, t.location)
	if err != nil {
		return 0, translateError("delete", t.name, err)
	}

	next, _, err := t.commit(ctx, base, func(ctx context.Context, base *manifest.Manifest) (change, error) {
		dels, n, err := t.match(ctx, base, column, want)
		if err != nil {
			return change{}, err
		}
		if n == 0 {
			return change{}, errNothingToDelete
		}
		deleted = n
		return change{deletions: dels}, nil
	})
	if errors.Is(err, errNothingToDelete) {
		deleted = 0
		return 0, nil
	}
	if err != nil {
		deleted = 0
		return 0, translateError("delete", t.name, err)
	}

	version = next.Version
	t.observe(next)
	return deleted, nil
}

// match collects the live rows of man whose column equals want.
func (t *Table) match(ctx context.Context, man *manifest.Manifest, column string, want schema.Value) (map[string]*roaring.Bitmap, int, error) {
	loader := t.loader(man)
	dels := make(map[string]*roaring.Bitmap)
	total := 0

	for _, ref := range man.Fragments {
		f, err := loader.Load(ctx, ref)
		if err != nil {
			return nil, 0, err
		}
		var bm *roaring.Bitmap
		for row := 0; row < f.Rows(); row++ {
			if man.IsDeleted(ref.ID, row) {
				continue
			}
			v, ok := f.Value(column, row)
			if !ok || v != want {
				continue
			}
			if bm == nil {
				bm = roaring.New()
			}
			bm.Add(uint32(row))
			total++
		}
		if bm != nil {
			dels[ref.ID] = bm
		}
	}
	return dels, total, nil
}

// CountRows returns the number of live rows.
func (t *Table) CountRows(ctx context.Context) (int, error) {
	man, err := t.snapshot(ctx)
	if err != nil {
		return 0, translateError("count_rows", t.name, err)
	}
	return man.RowCount(), nil
}

// Versions lists all published versions in ascending order.
func (t *Table) Versions(ctx context.Context) ([]uint64, error) {
	versions, err := t.conn.manifests.ListVersions(ctx, t.location)
	if err != nil {
		return nil, translateError("versions", t.name, err)
	}
	return versions, nil
}

// Checkout returns a read-only handle pinned to version.
func (t *Table) Checkout(ctx context.Context, version uint64) (*Table, error) {
	man, err := t.conn.manifests.ReadVersion(ctx, t.location, version)
	if err != nil {
		return nil, translateError("checkout", t.name, err)
	}
	return newTable(t.conn, t.name, t.location, man, true), nil
}

// Fragments returns the fragment refs of the current version.
func (t *Table) Fragments(ctx context.Context) ([]fragment.Ref, error) {
	man, err := t.snapshot(ctx)
	if err != nil {
		return nil, translateError("fragments", t.name, err)
	}
	return append([]fragment.Ref(nil), man.Fragments...), nil
}

func (t *Table) loader(man *manifest.Manifest) query.Loader {
	return query.LoaderFunc(func(ctx context.Context, ref fragment.Ref) (*fragment.Fragment, error) {
		return t.conn.reader.Read(ctx, t.location, ref, man.Schema)
	})
}
