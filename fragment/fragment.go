package fragment

import (
	"github.com/hupe1980/vectable/internal/bitset"
	"github.com/hupe1980/vectable/schema"
)

// Ref references a durable fragment from a manifest.
type Ref struct {
	// ID is a time-ordered UUIDv7 string.
	ID string
	// Path is the blob name relative to the table location.
	Path string
	// Rows is the number of rows in the fragment.
	Rows int
	// Size is the blob size in bytes.
	Size int64
	// Checksum is the CRC32C of the whole blob.
	Checksum uint32
}

// PathFor returns the table-relative blob name of fragment id.
func PathFor(id string) string {
	return "fragments/" + id + ".frag"
}

// column is the decoded form of one scalar column.
type column struct {
	typ     schema.Type
	valid   *bitset.BitSet // nil when every value is present
	strings []string
	ints    []int64
	floats  []float64
	bools   *bitset.BitSet
}

// Fragment is a decoded, immutable fragment. It is safe for concurrent readers.
type Fragment struct {
	id      string
	schema  *schema.Schema
	rows    int
	dim     int
	vectors []float32
	nulls   *bitset.BitSet // vector element nulls, nil if none
	columns map[string]*column
}

// ID returns the fragment id.
func (f *Fragment) ID() string { return f.id }

// Schema returns the schema the fragment was written with.
func (f *Fragment) Schema() *schema.Schema { return f.schema }

// Rows returns the number of rows.
func (f *Fragment) Rows() int { return f.rows }

// Vector returns the vector of row i. The slice aliases fragment memory and must not be modified.
func (f *Fragment) Vector(i int) []float32 {
	off := i * f.dim
	return f.vectors[off : off+f.dim : off+f.dim]
}

// VectorNulls returns the null mask of row i, or nil if the row has no null elements.
func (f *Fragment) VectorNulls(i int) []bool {
	if f.nulls == nil {
		return nil
	}
	var mask []bool
	off := i * f.dim
	for j := 0; j < f.dim; j++ {
		if f.nulls.Test(off + j) {
			if mask == nil {
				mask = make([]bool, f.dim)
			}
			mask[j] = true
		}
	}
	return mask
}

// Value returns the value of a scalar column at row i.
// ok is false if the column does not exist; a null value is returned as nil.
func (f *Fragment) Value(name string, i int) (v schema.Value, ok bool) {
	c, ok := f.columns[name]
	if !ok || i < 0 || i >= f.rows {
		return nil, false
	}
	if c.valid != nil && !c.valid.Test(i) {
		return nil, true
	}
	switch c.typ {
	case schema.TypeString:
		return c.strings[i], true
	case schema.TypeInt64:
		return c.ints[i], true
	case schema.TypeFloat64:
		return c.floats[i], true
	case schema.TypeBool:
		return c.bools.Test(i), true
	default:
		return nil, false
	}
}

// Values returns the named scalar columns of row i. All scalar columns are
// returned when names is empty; unknown names are skipped.
func (f *Fragment) Values(i int, names ...string) map[string]schema.Value {
	if len(names) == 0 {
		for _, c := range f.schema.ScalarColumns() {
			names = append(names, c.Name)
		}
	}
	out := make(map[string]schema.Value, len(names))
	for _, name := range names {
		if v, ok := f.Value(name, i); ok {
			out[name] = v
		}
	}
	return out
}

// SizeBytes approximates the decoded in-memory size. The Reader charges it
// against its cache byte budget.
func (f *Fragment) SizeBytes() int64 {
	size := int64(len(f.vectors)) * 4
	for _, c := range f.columns {
		size += int64(len(c.ints))*8 + int64(len(c.floats))*8
		for _, s := range c.strings {
			size += int64(len(s)) + 16
		}
	}
	return size
}
