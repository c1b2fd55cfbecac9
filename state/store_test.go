package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLayers(t *testing.T) {
	base := NewCache(nil)
	require.NoError(t, base.Set([]byte("a"), []byte("1")))
	require.NoError(t, base.Set([]byte("b"), []byte("2")))

	top := NewCache(base)
	require.NoError(t, top.Set([]byte("a"), []byte("10")))
	require.NoError(t, top.Delete([]byte("b")))
	require.NoError(t, top.Set([]byte("c"), []byte("3")))

	v, err := top.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("10"), v)
	ok, err := top.Has([]byte("b"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = base.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v, "parent untouched before Write")

	require.NoError(t, top.Write())
	assert.Equal(t, 0, top.Dirty())
	v, _ = base.Get([]byte("a"))
	assert.Equal(t, []byte("10"), v)
	v, _ = base.Get([]byte("b"))
	assert.Nil(t, v)
	v, _ = base.Get([]byte("c"))
	assert.Equal(t, []byte("3"), v)
}

func TestCacheDiscard(t *testing.T) {
	base := NewCache(nil)
	top := NewCache(base)
	require.NoError(t, top.Set([]byte("k"), []byte("v")))
	top.Discard()
	require.NoError(t, top.Write())
	ok, err := base.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheCopiesValues(t *testing.T) {
	c := NewCache(nil)
	val := []byte("abc")
	require.NoError(t, c.Set([]byte("k"), val))
	val[0] = 'z'
	got, _ := c.Get([]byte("k"))
	assert.Equal(t, []byte("abc"), got)

	assert.ErrorIs(t, c.Set(nil, val), ErrEmptyKey)
	assert.ErrorIs(t, c.Write(), ErrReadOnly)
}

func TestPrefixEndBytes(t *testing.T) {
	assert.Equal(t, []byte("q"), PrefixEndBytes([]byte("p")))
	assert.Equal(t, []byte{0x02}, PrefixEndBytes([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEndBytes([]byte{0xff}))
	assert.Nil(t, PrefixEndBytes(nil))
}

func TestNonce(t *testing.T) {
	c := NewCache(nil)
	n, err := GetNonce(c, "addr")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	require.NoError(t, CheckNonce(c, "addr", 0, false))
	assert.ErrorIs(t, CheckNonce(c, "addr", 1, false), ErrTxNonceInvalid)
	require.NoError(t, CheckNonce(c, "addr", 1, true))

	require.NoError(t, IncNonce(c, "addr"))
	require.NoError(t, IncNonce(c, "addr"))
	n, err = GetNonce(c, "addr")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.ErrorIs(t, CheckNonce(c, "addr", 1, true), ErrTxNonceInvalid)
}
