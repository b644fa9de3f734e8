package bitset

import (
	"fmt"
	"math/bits"
)

// BitSet is a fixed-size bitset. It is not safe for concurrent writers.
type BitSet struct {
	words []uint64
	size  int
}

// New creates a BitSet with size bits, all unset.
func New(size int) *BitSet {
	return &BitSet{words: make([]uint64, (size+63)/64), size: size}
}

// Len returns the number of bits.
func (b *BitSet) Len() int { return b.size }

// Set sets bit i. Out of range indexes are ignored.
func (b *BitSet) Set(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

// Unset clears bit i.
func (b *BitSet) Unset(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

// Test reports whether bit i is set.
func (b *BitSet) Test(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Any reports whether any bit is set.
func (b *BitSet) Any() bool {
	for _, w := range b.words {
		if w != 0 {
			return true
		}
	}
	return false
}

// EncodedLen returns the number of bytes Bytes produces for size bits.
func EncodedLen(size int) int { return (size + 7) / 8 }

// Bytes returns the bits packed LSB-first into EncodedLen(Len()) bytes.
func (b *BitSet) Bytes() []byte {
	out := make([]byte, EncodedLen(b.size))
	for i := range out {
		out[i] = byte(b.words[i>>3] >> ((uint(i) & 7) * 8))
	}
	return out
}

// FromBytes decodes size bits packed by Bytes.
func FromBytes(data []byte, size int) (*BitSet, error) {
	if size < 0 || len(data) != EncodedLen(size) {
		return nil, fmt.Errorf("bitset: %d bytes cannot hold exactly %d bits", len(data), size)
	}
	b := New(size)
	for i, v := range data {
		b.words[i>>3] |= uint64(v) << ((uint(i) & 7) * 8)
	}
	if size&63 != 0 && len(b.words) > 0 {
		// Ignore padding bits past size.
		b.words[len(b.words)-1] &= (1 << (uint(size) & 63)) - 1
	}
	return b, nil
}
