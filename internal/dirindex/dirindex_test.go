package dirindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetDel(t *testing.T) {
	ix := New(4)

	_, ok := ix.Get("a.txt")
	require.False(t, ok)

	ix.Set("a.txt", 1)
	ix.Set("b.txt", 2)

	v, ok := ix.Get("a.txt")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = ix.Get("b.txt")
	require.True(t, ok)
	require.Equal(t, 2, v)

	ix.Del("a.txt")
	_, ok = ix.Get("a.txt")
	require.False(t, ok)

	v, ok = ix.Get("b.txt")
	require.True(t, ok, "deleting one key leaves the other keys intact")
	require.Equal(t, 2, v)
}

func TestSetOverwritesExistingKey(t *testing.T) {
	ix := New(4)
	ix.Set("x", 1)
	ix.Set("x", 2)
	v, ok := ix.Get("x")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestManyKeysAcrossBuckets(t *testing.T) {
	ix := New(4)
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i, n := range names {
		ix.Set(n, i)
	}
	for i, n := range names {
		v, ok := ix.Get(n)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
