package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSchema is returned by Define for malformed column layouts.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaMismatch is returned by Validate when a row does not conform.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Type is the semantic type of a column.
type Type uint8

const (
	TypeVector Type = iota + 1
	TypeString
	TypeInt64
	TypeFloat64
	TypeBool
)

func (t Type) String() string {
	switch t {
	case TypeVector:
		return "vector"
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType parses the String form of a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "vector":
		return TypeVector, nil
	case "string", "utf8":
		return TypeString, nil
	case "int64", "int":
		return TypeInt64, nil
	case "float64", "float", "double":
		return TypeFloat64, nil
	case "bool", "boolean":
		return TypeBool, nil
	default:
		return 0, fmt.Errorf("%w: unknown column type %q", ErrInvalidSchema, s)
	}
}

// Column describes one column of a table.
type Column struct {
	Name string
	Type Type
	// Dimension is the fixed vector width. Only meaningful for TypeVector.
	Dimension int
	// Nullable allows a scalar value to be missing or nil.
	Nullable bool
	// NullableElements allows individual vector elements to be null.
	NullableElements bool
}

// ColumnOption configures a Column.
type ColumnOption func(*Column)

// WithNullable marks a scalar column as nullable.
func WithNullable() ColumnOption {
	return func(c *Column) { c.Nullable = true }
}

// WithNullElements allows null elements in a vector column.
func WithNullElements() ColumnOption {
	return func(c *Column) { c.NullableElements = true }
}

func newColumn(name string, t Type, dim int, opts []ColumnOption) Column {
	c := Column{Name: name, Type: t, Dimension: dim}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Vector returns a float32 vector column of the given dimension.
func Vector(name string, dim int, opts ...ColumnOption) Column {
	return newColumn(name, TypeVector, dim, opts)
}

// String returns a UTF-8 string column.
func String(name string, opts ...ColumnOption) Column {
	return newColumn(name, TypeString, 0, opts)
}

// Int64 returns an int64 column.
func Int64(name string, opts ...ColumnOption) Column {
	return newColumn(name, TypeInt64, 0, opts)
}

// Float64 returns a float64 column.
func Float64(name string, opts ...ColumnOption) Column {
	return newColumn(name, TypeFloat64, 0, opts)
}

// Bool returns a boolean column.
func Bool(name string, opts ...ColumnOption) Column {
	return newColumn(name, TypeBool, 0, opts)
}

// Schema is an ordered column layout with exactly one vector column.
// A Schema is immutable after Define.
type Schema struct {
	columns []Column
	vector  int
	index   map[string]int
}

// Define validates columns and returns the schema they describe.
func Define(columns ...Column) (*Schema, error) {
	s := &Schema{
		columns: append([]Column(nil), columns...),
		vector:  -1,
		index:   make(map[string]int, len(columns)),
	}

	for i, c := range s.columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, c.Name)
		}
		s.index[c.Name] = i

		switch c.Type {
		case TypeVector:
			if s.vector >= 0 {
				return nil, fmt.Errorf("%w: more than one vector column (%q, %q)", ErrInvalidSchema, s.columns[s.vector].Name, c.Name)
			}
			if c.Dimension <= 0 {
				return nil, fmt.Errorf("%w: vector column %q needs a positive dimension, got %d", ErrInvalidSchema, c.Name, c.Dimension)
			}
			if c.Nullable {
				return nil, fmt.Errorf("%w: vector column %q cannot be nullable", ErrInvalidSchema, c.Name)
			}
			s.vector = i
		case TypeString, TypeInt64, TypeFloat64, TypeBool:
			if c.Dimension != 0 {
				return nil, fmt.Errorf("%w: scalar column %q cannot have a dimension", ErrInvalidSchema, c.Name)
			}
			if c.NullableElements {
				return nil, fmt.Errorf("%w: scalar column %q cannot have null elements", ErrInvalidSchema, c.Name)
			}
		default:
			return nil, fmt.Errorf("%w: column %q has unknown type %s", ErrInvalidSchema, c.Name, c.Type)
		}
	}

	if s.vector < 0 {
		return nil, fmt.Errorf("%w: no vector column", ErrInvalidSchema)
	}
	return s, nil
}

// MustDefine is like Define but panics on error. Intended for package-level schemas.
func MustDefine(columns ...Column) *Schema {
	s, err := Define(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns a copy of the columns in order.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.columns) }

// VectorColumn returns the vector column.
func (s *Schema) VectorColumn() Column { return s.columns[s.vector] }

// Dimension returns the vector dimension.
func (s *Schema) Dimension() int { return s.columns[s.vector].Dimension }

// ScalarColumns returns all non-vector columns in order.
func (s *Schema) ScalarColumns() []Column {
	out := make([]Column, 0, len(s.columns)-1)
	for i, c := range s.columns {
		if i != s.vector {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Equal reports whether two schemas have identical columns.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(c.Type.String())
		if c.Type == TypeVector {
			fmt.Fprintf(&b, "[%d]", c.Dimension)
		}
		if c.Nullable || c.NullableElements {
			b.WriteString(" null")
		}
	}
	b.WriteByte(')')
	return b.String()
}
