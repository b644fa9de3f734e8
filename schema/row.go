package schema

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Value is a scalar column value: string, int64, float64, bool or nil.
type Value = any

// Row is one table row.
type Row struct {
	// Vector holds the vector column. Null elements are stored as 0.
	Vector []float32
	// VectorNulls marks null vector elements. It is either nil or has the
	// same length as Vector.
	VectorNulls []bool
	// Values holds scalar columns by name.
	Values map[string]Value
}

// NewRow returns a row with the given vector and scalar values.
func NewRow(vec []float32, values map[string]Value) Row {
	return Row{Vector: vec, Values: values}
}

// RowFromNullable builds a row from a vector whose elements may be nil.
func RowFromNullable(vec []*float32, values map[string]Value) Row {
	r := Row{Vector: make([]float32, len(vec)), Values: values}
	for i, v := range vec {
		if v == nil {
			if r.VectorNulls == nil {
				r.VectorNulls = make([]bool, len(vec))
			}
			r.VectorNulls[i] = true
			continue
		}
		r.Vector[i] = *v
	}
	return r
}

// HasNulls reports whether any vector element is null.
func (r Row) HasNulls() bool {
	for _, n := range r.VectorNulls {
		if n {
			return true
		}
	}
	return false
}

func mismatch(col, format string, args ...any) error {
	return fmt.Errorf("%w: column %q: %s", ErrSchemaMismatch, col, fmt.Sprintf(format, args...))
}

// Validate checks that row conforms to s.
func (s *Schema) Validate(row Row) error {
	vc := s.VectorColumn()
	if len(row.Vector) != vc.Dimension {
		return mismatch(vc.Name, "vector length %d, want %d", len(row.Vector), vc.Dimension)
	}
	if row.VectorNulls != nil && len(row.VectorNulls) != len(row.Vector) {
		return mismatch(vc.Name, "null mask length %d, want %d", len(row.VectorNulls), len(row.Vector))
	}
	if !vc.NullableElements && row.HasNulls() {
		return mismatch(vc.Name, "null element in non-nullable vector")
	}
	for i, f := range row.Vector {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return mismatch(vc.Name, "element %d is not finite", i)
		}
	}

	for name := range row.Values {
		c, ok := s.Column(name)
		if !ok {
			return mismatch(name, "unknown column")
		}
		if c.Type == TypeVector {
			return mismatch(name, "vector column must be set through Row.Vector")
		}
	}

	for _, c := range s.ScalarColumns() {
		v, present := row.Values[c.Name]
		if !present || v == nil {
			if !c.Nullable {
				return mismatch(c.Name, "missing value for non-nullable column")
			}
			continue
		}
		if _, err := Normalize(c.Type, v); err != nil {
			return mismatch(c.Name, "%v", err)
		}
	}
	return nil
}

// Normalize converts v to the canonical Go type for t
// (string, int64, float64 or bool). nil is returned unchanged.
func Normalize(t Type, v Value) (Value, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			if !utf8.ValidString(s) {
				return nil, fmt.Errorf("string value is not valid UTF-8")
			}
			return s, nil
		}
	case TypeInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case TypeFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("value of type %T is not %s", v, t)
}
