package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAbsentKeyReturnsNil(t *testing.T) {
	m := NewMemory()

	value, err := m.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemorySetGetDelete(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Set("cart", []byte(`[{"id":4}]`)))

	value, err := m.Get("cart")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":4}]`), value)

	require.NoError(t, m.Delete("cart"))
	value, err = m.Get("cart")
	require.NoError(t, err)
	assert.Nil(t, value)

	// Deleting an absent key is not an error.
	assert.NoError(t, m.Delete("cart"))
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("cart", []byte("abc")))

	value, err := m.Get("cart")
	require.NoError(t, err)
	value[0] = 'x'

	again, err := m.Get("cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFileRoundtrip(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	value, err := f.Get("cart")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, f.Set("cart", []byte(`[{"id":4,"quantity":2}]`)))
	value, err = f.Get("cart")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":4,"quantity":2}]`), value)

	require.NoError(t, f.Delete("cart"))
	value, err = f.Get("cart")
	require.NoError(t, err)
	assert.Nil(t, value)

	assert.NoError(t, f.Delete("cart"))
}
