package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/schema"
)

const (
	dirName   = "manifest"
	extension = ".manifest"
)

// Prefix returns the blob prefix holding the manifests of table.
func Prefix(table string) string {
	return path.Join(table, dirName) + "/"
}

// Name returns the blob name of version v of table.
// Versions are zero padded so lexical order equals numeric order.
func Name(table string, v uint64) string {
	return fmt.Sprintf("%s%020d%s", Prefix(table), v, extension)
}

// ParseName splits a manifest blob name into its table and version.
func ParseName(name string) (table string, version uint64, ok bool) {
	dir, file := path.Split(name)
	table, ok = strings.CutSuffix(dir, "/"+dirName+"/")
	if !ok || table == "" {
		return "", 0, false
	}
	digits, ok := strings.CutSuffix(file, extension)
	if !ok || len(digits) != 20 {
		return "", 0, false
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return table, v, true
}

func parseName(table, name string) (uint64, bool) {
	t, v, ok := ParseName(name)
	if !ok || t != table {
		return 0, false
	}
	return v, true
}

// Manager publishes and reads table manifests.
//
// Manager holds no manifest state. Every read goes to storage, so a Manager
// may be shared freely and is safe for concurrent use.
type Manager struct {
	store blobstore.ConditionalStore
	now   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over store.
func NewManager(store blobstore.ConditionalStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListVersions returns all published versions of table in ascending order.
// It returns ErrTableNotFound if there are none.
func (m *Manager) ListVersions(ctx context.Context, table string) ([]uint64, error) {
	names, err := m.store.List(ctx, Prefix(table))
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrStorageRead, Prefix(table), err)
	}

	versions := make([]uint64, 0, len(names))
	for _, name := range names {
		if v, ok := parseName(table, name); ok {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// CreateInitial publishes version 0 of table with no fragments.
func (m *Manager) CreateInitial(ctx context.Context, table string, s *schema.Schema, metric distance.Metric) (*Manifest, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", schema.ErrInvalidSchema)
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unsupported metric: %v", metric)
	}

	if _, err := m.ListVersions(ctx, table); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableAlreadyExists, table)
	} else if !errors.Is(err, ErrTableNotFound) {
		return nil, err
	}

	initial := &Manifest{
		Version:   0,
		Parent:    0,
		Table:     table,
		Schema:    s,
		Metric:    metric,
		CreatedAt: m.now(),
	}
	if err := m.put(ctx, initial); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %s", ErrTableAlreadyExists, table)
		}
		return nil, err
	}
	return initial, nil
}

// ReadCurrent returns the highest published version of table.
func (m *Manager) ReadCurrent(ctx context.Context, table string) (*Manifest, error) {
	versions, err := m.ListVersions(ctx, table)
	if err != nil {
		return nil, err
	}
	return m.ReadVersion(ctx, table, versions[len(versions)-1])
}

// ReadVersion returns version v of table.
func (m *Manager) ReadVersion(ctx context.Context, table string, v uint64) (*Manifest, error) {
	name := Name(table, v)

	data, err := blobstore.Get(ctx, m.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			if _, lerr := m.ListVersions(ctx, table); errors.Is(lerr, ErrTableNotFound) {
				return nil, lerr
			}
			return nil, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, table, v)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, name, err)
	}

	man, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if man.Version != v || man.Table != table {
		return nil, fmt.Errorf("%w: %s holds %s version %d", ErrCorrupt, name, man.Table, man.Version)
	}
	return man, nil
}

// Publish appends refs to base and publishes version base.Version+1.
// deletions are merged into the deletion vectors of base.
//
// The write is conditioned on the next version not existing. If another
// writer published it first, Publish returns ErrVersionConflict and the
// caller must re-read the current manifest and retry.
func (m *Manager) Publish(ctx context.Context, base *Manifest, refs []fragment.Ref, deletions map[string]*roaring.Bitmap) (*Manifest, error) {
	if base == nil {
		return nil, errors.New("publish: nil base manifest")
	}

	next, err := base.next(refs, deletions, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *Manager) put(ctx context.Context, man *Manifest) error {
	data, err := man.MarshalBinary()
	if err != nil {
		return err
	}

	name := Name(man.Table, man.Version)
	if err := m.store.PutIfAbsent(ctx, name, data); err != nil {
		if errors.Is(err, blobstore.ErrConflict) {
			return fmt.Errorf("%w: %s version %d", ErrVersionConflict, man.Table, man.Version)
		}
		return fmt.Errorf("%w: %s: %w", ErrStorageWrite, name, err)
	}
	return nil
}
