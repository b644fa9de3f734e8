package manifest

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/schema"
)

// Manifest describes one immutable table version.
type Manifest struct {
	// Version is the table version. Version 0 is the empty initial manifest.
	Version uint64
	// Parent is the version this one was derived from. Equal to Version for version 0.
	Parent uint64
	// Table is the table name.
	Table string
	// Schema is fixed for the lifetime of the table.
	Schema *schema.Schema
	// Metric is the default distance metric for searches.
	Metric distance.Metric
	// Fragments lists the live fragments in commit order.
	Fragments []fragment.Ref
	// Deletions maps fragment ids to deleted row positions.
	Deletions map[string]*roaring.Bitmap
	// CreatedAt is the commit time.
	CreatedAt time.Time
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Fragments = append([]fragment.Ref(nil), m.Fragments...)
	c.Deletions = cloneDeletions(m.Deletions)
	return &c
}

func cloneDeletions(d map[string]*roaring.Bitmap) map[string]*roaring.Bitmap {
	if len(d) == 0 {
		return nil
	}
	out := make(map[string]*roaring.Bitmap, len(d))
	for id, bm := range d {
		out[id] = bm.Clone()
	}
	return out
}

// Dimension returns the vector dimension of the table.
func (m *Manifest) Dimension() int { return m.Schema.Dimension() }

// Refs returns the live fragment refs in commit order.
func (m *Manifest) Refs() []fragment.Ref { return m.Fragments }

// IsDeleted reports whether row of fragment id is hidden by a deletion vector.
func (m *Manifest) IsDeleted(id string, row int) bool {
	bm, ok := m.Deletions[id]
	if !ok || row < 0 {
		return false
	}
	return bm.Contains(uint32(row))
}

// DeletedRows returns the number of deleted rows in fragment id.
func (m *Manifest) DeletedRows(id string) int {
	bm, ok := m.Deletions[id]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// RowCount returns the number of live rows.
func (m *Manifest) RowCount() int {
	n := 0
	for _, ref := range m.Fragments {
		n += ref.Rows - m.DeletedRows(ref.ID)
	}
	return n
}

// next derives version m.Version+1 with refs appended and deletions merged.
func (m *Manifest) next(refs []fragment.Ref, deletions map[string]*roaring.Bitmap, now time.Time) (*Manifest, error) {
	n := m.Clone()
	n.Parent = m.Version
	n.Version = m.Version + 1
	n.CreatedAt = now

	seen := make(map[string]struct{}, len(n.Fragments)+len(refs))
	for _, ref := range n.Fragments {
		seen[ref.ID] = struct{}{}
	}
	for _, ref := range refs {
		if _, dup := seen[ref.ID]; dup {
			return nil, fmt.Errorf("fragment %s is already part of version %d", ref.ID, m.Version)
		}
		seen[ref.ID] = struct{}{}
		n.Fragments = append(n.Fragments, ref)
	}

	for id, bm := range deletions {
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("deletion vector for unknown fragment %s", id)
		}
		if bm == nil || bm.IsEmpty() {
			continue
		}
		if n.Deletions == nil {
			n.Deletions = make(map[string]*roaring.Bitmap)
		}
		if cur, ok := n.Deletions[id]; ok {
			cur.Or(bm)
		} else {
			n.Deletions[id] = bm.Clone()
		}
		n.Deletions[id].RunOptimize()
	}
	return n, nil
}
