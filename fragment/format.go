package fragment

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vectable/internal/binenc"
	"github.com/hupe1980/vectable/internal/bitset"
	"github.com/hupe1980/vectable/schema"
)

const (
	// fragmentMagic is "VTFR".
	fragmentMagic uint32 = 0x56544652
	formatVersion uint32 = 1
)

// maxBlockSize bounds every length and offset stored as uint32.
var maxBlockSize uint64 = math.MaxUint32

// encode serializes rows into a sealed fragment blob.
// Rows must already be valid for s.
func encode(id string, s *schema.Schema, rows []schema.Row, c Compression) ([]byte, error) {
	if uint64(len(rows)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d rows", ErrBatchTooLarge, len(rows))
	}

	payload := binenc.NewBuffer(nil)
	payload.WriteString(id)
	s.Encode(payload)
	payload.WriteUint32(uint32(len(rows)))
	payload.WriteUint8(uint8(c))

	cols := s.Columns()
	payload.WriteUint32(uint32(len(cols)))
	for _, col := range cols {
		var raw []byte
		if col.Type == schema.TypeVector {
			raw = encodeVectors(col, rows)
		} else {
			var err error
			if raw, err = encodeScalars(col, rows); err != nil {
				return nil, err
			}
		}

		if uint64(len(raw)) > maxBlockSize {
			return nil, fmt.Errorf("%w: column %q needs %d bytes", ErrBatchTooLarge, col.Name, len(raw))
		}
		block, err := compressBlock(raw, c)
		if err != nil {
			return nil, fmt.Errorf("compress column %q: %w", col.Name, err)
		}
		payload.WriteBytes(block)
	}
	if err := payload.Err(); err != nil {
		return nil, err
	}
	if uint64(len(payload.Bytes())) > maxBlockSize {
		return nil, fmt.Errorf("%w: payload needs %d bytes", ErrBatchTooLarge, len(payload.Bytes()))
	}

	return binenc.Seal(fragmentMagic, formatVersion, payload.Bytes()), nil
}

func writeValidity(buf *binenc.Buffer, valid *bitset.BitSet) {
	if valid == nil {
		buf.WriteUint8(0)
		return
	}
	buf.WriteUint8(1)
	buf.WriteRaw(valid.Bytes())
}

func encodeVectors(col schema.Column, rows []schema.Row) []byte {
	dim := col.Dimension
	n := len(rows) * dim

	var nulls *bitset.BitSet
	for i, r := range rows {
		for j, isNull := range r.VectorNulls {
			if isNull {
				if nulls == nil {
					nulls = bitset.New(n)
				}
				nulls.Set(i*dim + j)
			}
		}
	}

	out := binenc.NewBuffer(make([]byte, 0, 1+bitset.EncodedLen(n)+n*4))
	writeValidity(out, nulls)

	raw := out.Bytes()
	for i, r := range rows {
		for j, v := range r.Vector {
			if nulls != nil && nulls.Test(i*dim+j) {
				v = 0
			}
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
		}
	}
	return raw
}

func encodeScalars(col schema.Column, rows []schema.Row) ([]byte, error) {
	n := len(rows)
	values := make([]schema.Value, n)

	var valid *bitset.BitSet
	for i, r := range rows {
		v, err := schema.Normalize(col.Type, r.Values[col.Name])
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", col.Name, i, err)
		}
		if v == nil {
			if valid == nil {
				valid = bitset.New(n)
				for k := 0; k < i; k++ {
					valid.Set(k)
				}
			}
			continue
		}
		if valid != nil {
			valid.Set(i)
		}
		values[i] = v
	}

	out := binenc.NewBuffer(nil)
	writeValidity(out, valid)

	switch col.Type {
	case schema.TypeString:
		var total uint64
		for _, v := range values {
			s, _ := v.(string)
			total += uint64(len(s))
		}
		if total > maxBlockSize {
			return nil, fmt.Errorf("%w: column %q holds %d bytes of strings", ErrBatchTooLarge, col.Name, total)
		}

		var offset uint32
		out.WriteUint32(0)
		for _, v := range values {
			s, _ := v.(string)
			offset += uint32(len(s))
			out.WriteUint32(offset)
		}
		for _, v := range values {
			s, _ := v.(string)
			out.WriteRaw([]byte(s))
		}
	case schema.TypeInt64:
		for _, v := range values {
			x, _ := v.(int64)
			out.WriteInt64(x)
		}
	case schema.TypeFloat64:
		for _, v := range values {
			x, _ := v.(float64)
			out.WriteFloat64(x)
		}
	case schema.TypeBool:
		bits := bitset.New(n)
		for i, v := range values {
			if b, _ := v.(bool); b {
				bits.Set(i)
			}
		}
		out.WriteRaw(bits.Bytes())
	default:
		return nil, fmt.Errorf("column %q: unsupported type %s", col.Name, col.Type)
	}
	return out.Bytes(), out.Err()
}

// decode parses a sealed fragment blob.
func decode(data []byte) (*Fragment, error) {
	_, payload, err := binenc.Unseal(data, fragmentMagic, formatVersion)
	if err != nil {
		return nil, err
	}

	buf := binenc.NewBuffer(payload)
	id := buf.ReadString()
	s, err := schema.Decode(buf)
	if err != nil {
		return nil, err
	}
	rows := int(buf.ReadUint32())
	codec := Compression(buf.ReadUint8())
	ncols := int(buf.ReadUint32())
	if err := buf.Err(); err != nil {
		return nil, err
	}

	cols := s.Columns()
	if ncols != len(cols) {
		return nil, fmt.Errorf("fragment has %d column blocks, schema has %d columns", ncols, len(cols))
	}

	f := &Fragment{
		id:      id,
		schema:  s,
		rows:    rows,
		dim:     s.Dimension(),
		columns: make(map[string]*column, len(cols)-1),
	}

	for _, col := range cols {
		block := buf.ReadBytes()
		if err := buf.Err(); err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		raw, err := decompressBlock(block, codec)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}

		if col.Type == schema.TypeVector {
			if err := f.decodeVectors(raw); err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			continue
		}
		c, err := decodeScalars(col, rows, raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		f.columns[col.Name] = c
	}
	if buf.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", buf.Remaining())
	}
	return f, nil
}

func readValidity(buf *binenc.Buffer, n int) (*bitset.BitSet, error) {
	if buf.ReadUint8() == 0 {
		return nil, buf.Err()
	}
	raw := buf.ReadRaw(bitset.EncodedLen(n))
	if err := buf.Err(); err != nil {
		return nil, err
	}
	return bitset.FromBytes(raw, n)
}

func (f *Fragment) decodeVectors(raw []byte) error {
	if uint64(f.rows)*uint64(f.dim) > uint64(len(raw))/4 {
		return fmt.Errorf("%d rows of dimension %d do not fit in %d bytes", f.rows, f.dim, len(raw))
	}
	n := f.rows * f.dim
	buf := binenc.NewBuffer(raw)

	nulls, err := readValidity(buf, n)
	if err != nil {
		return err
	}
	data := buf.ReadRaw(n * 4)
	if err := buf.Err(); err != nil {
		return err
	}
	if buf.Remaining() != 0 {
		return fmt.Errorf("%d trailing bytes", buf.Remaining())
	}

	f.nulls = nulls
	f.vectors = make([]float32, n)
	for i := range f.vectors {
		f.vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

func decodeScalars(col schema.Column, rows int, raw []byte) (*column, error) {
	buf := binenc.NewBuffer(raw)

	valid, err := readValidity(buf, rows)
	if err != nil {
		return nil, err
	}
	c := &column{typ: col.Type, valid: valid}

	if w := minWidth(col.Type); w > 0 && rows > buf.Remaining()/w {
		return nil, fmt.Errorf("%d rows do not fit in %d bytes", rows, buf.Remaining())
	}

	switch col.Type {
	case schema.TypeString:
		offsets := make([]uint32, rows+1)
		for i := range offsets {
			offsets[i] = buf.ReadUint32()
		}
		if err := buf.Err(); err != nil {
			return nil, err
		}
		data := buf.ReadRaw(int(offsets[rows]))
		if err := buf.Err(); err != nil {
			return nil, err
		}
		c.strings = make([]string, rows)
		for i := 0; i < rows; i++ {
			if offsets[i] > offsets[i+1] {
				return nil, fmt.Errorf("string offsets not monotonic at row %d", i)
			}
			c.strings[i] = string(data[offsets[i]:offsets[i+1]])
		}
	case schema.TypeInt64:
		c.ints = make([]int64, rows)
		for i := range c.ints {
			c.ints[i] = buf.ReadInt64()
		}
	case schema.TypeFloat64:
		c.floats = make([]float64, rows)
		for i := range c.floats {
			c.floats[i] = buf.ReadFloat64()
		}
	case schema.TypeBool:
		raw := buf.ReadRaw(bitset.EncodedLen(rows))
		if err := buf.Err(); err != nil {
			return nil, err
		}
		if c.bools, err = bitset.FromBytes(raw, rows); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported type %s", col.Type)
	}

	if err := buf.Err(); err != nil {
		return nil, err
	}
	if buf.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", buf.Remaining())
	}
	return c, nil
}

// minWidth is the minimum number of encoded bytes per row of a scalar type.
func minWidth(t schema.Type) int {
	switch t {
	case schema.TypeString:
		return 4
	case schema.TypeInt64, schema.TypeFloat64:
		return 8
	default:
		return 0
	}
}
