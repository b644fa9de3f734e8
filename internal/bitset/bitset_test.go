package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitSet(t *testing.T) {
	b := New(100)
	assert.Equal(t, 100, b.Len())
	assert.False(t, b.Any())

	b.Set(10)
	assert.True(t, b.Test(10))
	assert.Equal(t, 1, b.Count())

	b.Unset(10)
	assert.False(t, b.Test(10))

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(99)
	b.Set(100) // out of range
	b.Set(-1)
	assert.Equal(t, 4, b.Count())
	assert.True(t, b.Any())
	assert.False(t, b.Test(100))
}

func TestBitSetBytesRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 7, 8, 9, 63, 64, 65, 130} {
		b := New(size)
		for i := 0; i < size; i += 3 {
			b.Set(i)
		}

		data := b.Bytes()
		require.Len(t, data, EncodedLen(size))

		got, err := FromBytes(data, size)
		require.NoError(t, err)
		for i := 0; i < size; i++ {
			assert.Equal(t, b.Test(i), got.Test(i), "size %d bit %d", size, i)
		}
		assert.Equal(t, b.Count(), got.Count())
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	_, err := FromBytes([]byte{1, 2}, 20)
	assert.Error(t, err)

	got, err := FromBytes([]byte{0xff}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count())
}
