package schema

import (
	"fmt"

	"github.com/hupe1980/vectable/internal/binenc"
)

const (
	flagNullable         = 1 << 0
	flagNullableElements = 1 << 1
)

// Encode appends the binary form of s to buf.
func (s *Schema) Encode(buf *binenc.Buffer) {
	buf.WriteUint32(uint32(len(s.columns)))
	for _, c := range s.columns {
		buf.WriteString(c.Name)
		buf.WriteUint8(uint8(c.Type))
		buf.WriteUint32(uint32(c.Dimension))

		var flags uint8
		if c.Nullable {
			flags |= flagNullable
		}
		if c.NullableElements {
			flags |= flagNullableElements
		}
		buf.WriteUint8(flags)
	}
}

// Decode reads a schema written by Encode and validates it.
func Decode(buf *binenc.Buffer) (*Schema, error) {
	n := buf.ReadUint32()
	if err := buf.Err(); err != nil {
		return nil, err
	}
	// Each column takes at least 10 bytes; reject counts the buffer cannot hold.
	if int(n) > buf.Remaining()/10 {
		return nil, fmt.Errorf("%w: column count %d exceeds encoded size", ErrInvalidSchema, n)
	}

	cols := make([]Column, 0, n)
	for i := uint32(0); i < n; i++ {
		c := Column{
			Name:      buf.ReadString(),
			Type:      Type(buf.ReadUint8()),
			Dimension: int(buf.ReadUint32()),
		}
		flags := buf.ReadUint8()
		c.Nullable = flags&flagNullable != 0
		c.NullableElements = flags&flagNullableElements != 0
		cols = append(cols, c)
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}
	return Define(cols...)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Schema) MarshalBinary() ([]byte, error) {
	buf := binenc.NewBuffer(nil)
	s.Encode(buf)
	return buf.Bytes(), buf.Err()
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Schema) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(binenc.NewBuffer(data))
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}
