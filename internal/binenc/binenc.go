// Package binenc provides the little-endian framing shared by the manifest and
// fragment formats.
//
// Every persisted object is a sealed envelope:
//
//	Magic    (4 bytes)
//	Version  (4 bytes)
//	Checksum (4 bytes) - CRC32C of payload
//	Length   (4 bytes) - payload length in bytes
//	Payload  (Length bytes)
//
// Strings are length-prefixed with a uint32, byte slices likewise.
package binenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/vectable/internal/hash"
)

// HeaderSize is the size of the envelope header.
const HeaderSize = 16

var (
	// ErrBadMagic is returned when the envelope magic does not match.
	ErrBadMagic = errors.New("binenc: invalid magic")

	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("binenc: checksum mismatch")

	// ErrUnsupportedVersion is returned for envelopes newer than the reader.
	ErrUnsupportedVersion = errors.New("binenc: unsupported version")
)

// Seal wraps payload into an envelope.
func Seal(magic, version uint32, payload []byte) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], version)
	binary.LittleEndian.PutUint32(out[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	return append(out, payload...)
}

// Unseal validates an envelope and returns its version and payload.
// The payload aliases data.
func Unseal(data []byte, magic, maxVersion uint32) (uint32, []byte, error) {
	if len(data) < HeaderSize {
		return 0, nil, io.ErrUnexpectedEOF
	}
	if m := binary.LittleEndian.Uint32(data[0:4]); m != magic {
		return 0, nil, fmt.Errorf("%w: %#x", ErrBadMagic, m)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version == 0 || version > maxVersion {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	if uint64(len(data)-HeaderSize) < uint64(length) {
		return 0, nil, io.ErrUnexpectedEOF
	}
	payload := data[HeaderSize : HeaderSize+int(length)]
	if hash.CRC32C(payload) != checksum {
		return 0, nil, ErrChecksum
	}
	return version, payload, nil
}

// Checksum returns the checksum stored in a sealed envelope header.
func Checksum(data []byte) uint32 {
	if len(data) < HeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(data[8:12])
}

// Buffer is an append-only encoder and a bounds-checked decoder.
// The first error sticks; subsequent calls are no-ops.
type Buffer struct {
	buf []byte
	pos int
	err error
}

// NewBuffer returns a Buffer over b. Writes append to b, reads consume it.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Bytes returns the encoded bytes.
func (b *Buffer) Bytes() []byte { return b.buf }

// Err returns the first error encountered.
func (b *Buffer) Err() error { return b.err }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.buf) - b.pos }

// Fail records err unless an error is already set.
func (b *Buffer) Fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Buffer) WriteUint8(v uint8) {
	if b.err != nil {
		return
	}
	b.buf = append(b.buf, v)
}

func (b *Buffer) WriteUint16(v uint16) {
	if b.err != nil {
		return
	}
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

func (b *Buffer) WriteUint32(v uint32) {
	if b.err != nil {
		return
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

func (b *Buffer) WriteUint64(v uint64) {
	if b.err != nil {
		return
	}
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

func (b *Buffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

func (b *Buffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }

func (b *Buffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
		return
	}
	b.WriteUint8(0)
}

// WriteBytes writes a uint32 length prefix followed by p.
func (b *Buffer) WriteBytes(p []byte) {
	if b.err != nil {
		return
	}
	if uint64(len(p)) > math.MaxUint32 {
		b.err = fmt.Errorf("binenc: byte slice too long: %d", len(p))
		return
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(p)))
	b.buf = append(b.buf, p...)
}

// WriteString writes a uint32 length prefix followed by s.
func (b *Buffer) WriteString(s string) {
	if b.err != nil {
		return
	}
	if uint64(len(s)) > math.MaxUint32 {
		b.err = fmt.Errorf("binenc: string too long: %d", len(s))
		return
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(s)))
	b.buf = append(b.buf, s...)
}

func (b *Buffer) next(n int) []byte {
	if b.err != nil {
		return nil
	}
	if n < 0 || b.pos+n > len(b.buf) {
		b.err = io.ErrUnexpectedEOF
		return nil
	}
	p := b.buf[b.pos : b.pos+n]
	b.pos += n
	return p
}

func (b *Buffer) ReadUint8() uint8 {
	p := b.next(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (b *Buffer) ReadUint16() uint16 {
	p := b.next(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (b *Buffer) ReadUint32() uint32 {
	p := b.next(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (b *Buffer) ReadUint64() uint64 {
	p := b.next(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (b *Buffer) ReadInt64() int64 { return int64(b.ReadUint64()) }

func (b *Buffer) ReadFloat32() float32 { return math.Float32frombits(b.ReadUint32()) }

func (b *Buffer) ReadFloat64() float64 { return math.Float64frombits(b.ReadUint64()) }

func (b *Buffer) ReadBool() bool { return b.ReadUint8() != 0 }

// ReadBytes reads a length-prefixed byte slice. The result aliases the buffer.
func (b *Buffer) ReadBytes() []byte {
	n := b.ReadUint32()
	if b.err != nil {
		return nil
	}
	return b.next(int(n))
}

// ReadString reads a length-prefixed string.
func (b *Buffer) ReadString() string {
	return string(b.ReadBytes())
}

// ReadRaw reads exactly n bytes without a length prefix.
func (b *Buffer) ReadRaw(n int) []byte {
	return b.next(n)
}

// WriteRaw appends p without a length prefix.
func (b *Buffer) WriteRaw(p []byte) {
	if b.err != nil {
		return
	}
	b.buf = append(b.buf, p...)
}
