package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/internal/binenc"
	"github.com/hupe1980/vectable/schema"
)

const (
	// manifestMagic is "VTMF".
	manifestMagic uint32 = 0x56544d46
	formatVersion uint32 = 1
)

// MarshalBinary encodes the manifest.
//
// Payload:
//
//	Version    (8 bytes)
//	Parent     (8 bytes)
//	CreatedAt  (8 bytes) - UnixNano
//	Table      (string)
//	Metric     (1 byte)
//	Schema
//	NumFragments (4 bytes)
//	Fragments...
//	  ID (string), Path (string), Rows (8 bytes), Size (8 bytes), Checksum (4 bytes)
//	NumDeletions (4 bytes)
//	Deletions... (sorted by fragment id)
//	  FragmentID (string), Bitmap (bytes, portable roaring format)
func (m *Manifest) MarshalBinary() ([]byte, error) {
	buf := binenc.NewBuffer(make([]byte, 0, 128+len(m.Fragments)*96))

	buf.WriteUint64(m.Version)
	buf.WriteUint64(m.Parent)
	buf.WriteInt64(m.CreatedAt.UnixNano())
	buf.WriteString(m.Table)
	buf.WriteUint8(uint8(m.Metric))
	m.Schema.Encode(buf)

	buf.WriteUint32(uint32(len(m.Fragments)))
	for _, ref := range m.Fragments {
		buf.WriteString(ref.ID)
		buf.WriteString(ref.Path)
		buf.WriteUint64(uint64(ref.Rows))
		buf.WriteInt64(ref.Size)
		buf.WriteUint32(ref.Checksum)
	}

	ids := make([]string, 0, len(m.Deletions))
	for id := range m.Deletions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	buf.WriteUint32(uint32(len(ids)))
	for _, id := range ids {
		data, err := m.Deletions[id].ToBytes()
		if err != nil {
			return nil, fmt.Errorf("encode deletion vector of %s: %w", id, err)
		}
		buf.WriteString(id)
		buf.WriteBytes(data)
	}

	if err := buf.Err(); err != nil {
		return nil, err
	}
	return binenc.Seal(manifestMagic, formatVersion, buf.Bytes()), nil
}

// Decode parses a manifest written by MarshalBinary.
// Any failure is reported as ErrCorrupt.
func Decode(data []byte) (*Manifest, error) {
	m, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return m, nil
}

func decode(data []byte) (*Manifest, error) {
	_, payload, err := binenc.Unseal(data, manifestMagic, formatVersion)
	if err != nil {
		return nil, err
	}

	buf := binenc.NewBuffer(payload)
	m := &Manifest{
		Version:   buf.ReadUint64(),
		Parent:    buf.ReadUint64(),
		CreatedAt: time.Unix(0, buf.ReadInt64()).UTC(),
		Table:     buf.ReadString(),
		Metric:    distance.Metric(buf.ReadUint8()),
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}
	if !m.Metric.Valid() {
		return nil, fmt.Errorf("unknown metric %d", m.Metric)
	}

	if m.Schema, err = schema.Decode(buf); err != nil {
		return nil, err
	}

	n := buf.ReadUint32()
	if int(n) > buf.Remaining()/28 {
		return nil, fmt.Errorf("fragment count %d exceeds encoded size", n)
	}
	m.Fragments = make([]fragment.Ref, 0, n)
	for i := uint32(0); i < n; i++ {
		ref := fragment.Ref{
			ID:       buf.ReadString(),
			Path:     buf.ReadString(),
			Rows:     int(buf.ReadUint64()),
			Size:     buf.ReadInt64(),
			Checksum: buf.ReadUint32(),
		}
		m.Fragments = append(m.Fragments, ref)
	}

	nd := buf.ReadUint32()
	if err := buf.Err(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nd; i++ {
		id := buf.ReadString()
		raw := buf.ReadBytes()
		if err := buf.Err(); err != nil {
			return nil, err
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("deletion vector of %s: %w", id, err)
		}
		if m.Deletions == nil {
			m.Deletions = make(map[string]*roaring.Bitmap, nd)
		}
		m.Deletions[id] = bm
	}

	if err := buf.Err(); err != nil {
		return nil, err
	}
	if buf.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", buf.Remaining())
	}
	return m, nil
}
