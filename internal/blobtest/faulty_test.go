package blobtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectable/blobstore"
)

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	f := NewFaultyStore(blobstore.NewMemoryStore())

	f.AddFault(Fault{Op: OpPut, Pattern: "fragments/", Times: 1})

	assert.ErrorIs(t, f.Put(ctx, "t/fragments/a", []byte("x")), ErrInjected)
	require.NoError(t, f.Put(ctx, "t/fragments/a", []byte("x")))
	require.NoError(t, f.Put(ctx, "t/manifest/1", []byte("m")))
	assert.Equal(t, 3, f.Calls(OpPut))

	f.AddFault(Fault{Op: OpPutIfAbsent, Pattern: "manifest/"})
	assert.ErrorIs(t, f.PutIfAbsent(ctx, "t/manifest/2", nil), ErrInjected)
	assert.ErrorIs(t, f.PutIfAbsent(ctx, "t/manifest/2", nil), ErrInjected)

	f.Reset()
	require.NoError(t, f.PutIfAbsent(ctx, "t/manifest/2", nil))
}

func TestFaultyStorePartialPut(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	f := NewFaultyStore(inner)
	f.AddFault(Fault{Op: OpPut, Pattern: "frag", Partial: true})

	require.Error(t, f.Put(ctx, "frag", []byte("abcdef")))

	data, err := blobstore.Get(ctx, inner, "frag")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
