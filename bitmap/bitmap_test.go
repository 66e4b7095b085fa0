package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSize(t *testing.T) {
	tables := []struct {
		width, height int
		ok            bool
	}{
		{1, 1, true},
		{255, 255, true},
		{128, 64, true},
		{0, 10, false},
		{10, 0, false},
		{256, 10, false},
		{10, 256, false},
	}

	for _, table := range tables {
		err := ValidSize(table.width, table.height)
		if table.ok {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrSize)
		}
	}
}

func TestUnpack(t *testing.T) {
	// 10 pixels wide so each row needs two bytes
	b := []byte{
		0xa0, 0xc0,
		0x00, 0x40,
	}
	f, err := Unpack(10, 2, b)
	require.NoError(t, err)

	assert.Equal(t, "#-#-----##\n---------#\n", f.String())
	assert.Equal(t, b, f.Pack())
}

func TestUnpackPadding(t *testing.T) {
	// Padding bits are ignored and dropped when packing again
	f, err := Unpack(3, 1, []byte{0xff})
	require.NoError(t, err)
	assert.Equal(t, []Pixel{Foreground, Foreground, Foreground}, f.Pix)
	assert.Equal(t, []byte{0xe0}, f.Pack())
}

func TestUnpackLength(t *testing.T) {
	_, err := Unpack(8, 2, []byte{0x00})
	assert.ErrorIs(t, err, ErrPackedLength)

	_, err = Unpack(300, 1, make([]byte, 38))
	assert.ErrorIs(t, err, ErrSize)
}

func TestCompare(t *testing.T) {
	a, err := New(4, 2)
	require.NoError(t, err)
	b, err := New(4, 2)
	require.NoError(t, err)

	i, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, -1, i)
	assert.True(t, a.Equal(b))

	b.Set(1, 1, Foreground)
	i, err = a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 5, i)
	assert.False(t, a.Equal(b))

	c, err := New(2, 4)
	require.NoError(t, err)
	_, err = a.Compare(c)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.False(t, a.Equal(c))
}

func TestDelta(t *testing.T) {
	prev, err := Unpack(8, 1, []byte{0xf0})
	require.NoError(t, err)
	f, err := Unpack(8, 1, []byte{0x3c})
	require.NoError(t, err)

	delta, err := Delta(f, prev)
	require.NoError(t, err)
	assert.Equal(t, "--..##..\n", Render(8, delta))

	same, err := Delta(f, f)
	require.NoError(t, err)
	for _, p := range same {
		assert.Equal(t, Transparent, p)
	}

	other, err := New(4, 2)
	require.NoError(t, err)
	_, err = Delta(f, other)
	assert.ErrorIs(t, err, ErrMismatch)
}
