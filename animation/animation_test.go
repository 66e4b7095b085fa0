package animation

import (
	"math/rand"
	"testing"

	"github.com/bodgit/microanim/bitmap"
	"github.com/bodgit/microanim/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomAnimation returns frames that drift slowly, much like a real
// animation
func randomAnimation(t *testing.T, r *rand.Rand, width, height, frames int) *Animation {
	a, err := New(width, height)
	require.NoError(t, err)

	f, err := bitmap.New(width, height)
	require.NoError(t, err)
	p := bitmap.Background
	for i := range f.Pix {
		if r.Intn(8) == 0 {
			p = 1 - p
		}
		f.Pix[i] = p
	}

	for i := 0; i < frames; i++ {
		require.NoError(t, a.Add(f))

		next := *f
		next.Pix = append([]bitmap.Pixel(nil), f.Pix...)
		for j := range next.Pix {
			if r.Intn(40) == 0 {
				next.Pix[j] = 1 - next.Pix[j]
			}
		}
		f = &next
	}

	return a
}

func TestEncodeLayout(t *testing.T) {
	a, err := New(16, 1)
	require.NoError(t, err)
	blank, err := bitmap.New(16, 1)
	require.NoError(t, err)
	require.NoError(t, a.Add(blank))
	require.NoError(t, a.Add(blank))

	r, err := a.Encode(true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 16, 1, 8, 0, 10, 0, 0x41, 0x10, 0x41, 0x10}, r.Data)
	assert.Equal(t, []FrameInfo{
		{Type: frame.RLE, Size: 2, Original: 2},
		{Type: frame.RLE, Size: 2, Original: 2},
	}, r.Frames)
	assert.Equal(t, 4, a.PackedSize())
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))

	for i := 0; i < 30; i++ {
		a := randomAnimation(t, r, 1+r.Intn(128), 1+r.Intn(64), 1+r.Intn(12))

		for _, delta := range []bool{false, true} {
			result, err := Compress(a, delta)
			require.NoError(t, err)

			got, err := Decode(result.Data)
			require.NoError(t, err)
			require.Equal(t, len(a.Frames), len(got.Frames))
			for j := range a.Frames {
				assert.True(t, a.Frames[j].Equal(got.Frames[j]), "animation %d frame %d delta %v", i, j, delta)
			}

			total := headerSize + offsetSize*len(a.Frames)
			for j, info := range result.Frames {
				assert.LessOrEqual(t, info.Size, info.Original+1)
				if !delta {
					assert.NotEqual(t, frame.RLEDelta, info.Type, "frame %d", j)
				}
				total += info.Size
			}
			assert.Equal(t, total, len(result.Data))
		}
	}
}

func TestDeltaSmaller(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	a := randomAnimation(t, r, 128, 64, 8)

	plain, err := Compress(a, false)
	require.NoError(t, err)
	delta, err := Compress(a, true)
	require.NoError(t, err)

	assert.Less(t, len(delta.Data), len(plain.Data))
	assert.Less(t, len(delta.Data), a.PackedSize())
}

func TestVerify(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	a := randomAnimation(t, r, 32, 16, 3)

	result, err := a.Encode(true)
	require.NoError(t, err)
	require.NoError(t, Verify(a, result.Data))

	// Change the original after encoding
	changed := *a.Frames[2]
	changed.Pix = append([]bitmap.Pixel(nil), a.Frames[2].Pix...)
	changed.Pix[37] = 1 - changed.Pix[37]
	b := &Animation{Width: a.Width, Height: a.Height, Frames: []*bitmap.Frame{a.Frames[0], a.Frames[1], &changed}}
	err = Verify(b, result.Data)
	require.ErrorIs(t, err, ErrVerify)
	assert.Contains(t, err.Error(), "frame 2 pixel 5,1")

	c := &Animation{Width: a.Width, Height: a.Height, Frames: a.Frames[:2]}
	assert.ErrorIs(t, Verify(c, result.Data), ErrVerify)

	truncated := result.Data[:len(result.Data)-1]
	assert.ErrorIs(t, Verify(a, truncated), ErrVerify)

	// The decoding error stays in the chain
	blank, err := New(8, 1)
	require.NoError(t, err)
	f, err := bitmap.New(8, 1)
	require.NoError(t, err)
	require.NoError(t, blank.Add(f))
	err = Verify(blank, []byte{0, 1, 8, 1, 6, 0, 0x43, 0x08})
	assert.ErrorIs(t, err, ErrVerify)
	assert.ErrorIs(t, err, frame.ErrBadColor)
}

func TestEncodeErrors(t *testing.T) {
	a, err := New(8, 8)
	require.NoError(t, err)

	_, err = a.Encode(true)
	assert.ErrorIs(t, err, ErrNoFrames)

	small, err := bitmap.New(4, 4)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Add(small), bitmap.ErrMismatch)

	_, err = New(300, 8)
	assert.ErrorIs(t, err, bitmap.ErrSize)

	f, err := bitmap.New(8, 8)
	require.NoError(t, err)
	for i := 0; i < MaxFrames; i++ {
		require.NoError(t, a.Add(f))
	}
	assert.ErrorIs(t, a.Add(f), ErrTooManyFrames)
}

func TestEncodeTooLarge(t *testing.T) {
	// Noise doesn't compress so every frame is stored uncompressed
	r := rand.New(rand.NewSource(7))
	a, err := New(255, 255)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b := make([]byte, bitmap.PackedSize(255, 255))
		r.Read(b)
		require.NoError(t, a.AddPacked(b))
	}

	_, err = a.Encode(false)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeErrors(t *testing.T) {
	tables := []struct {
		b   []byte
		err error
	}{
		{[]byte{0, 1}, errNotEnough},
		{[]byte{1, 1, 16, 1, 6, 0, 0x41, 0x10}, ErrBadVersion},
		{[]byte{0, 2, 16, 1, 8, 0}, errNotEnough},
		{[]byte{0, 1, 16, 1, 2, 0, 0x41, 0x10}, ErrBadOffset},
		{[]byte{0, 1, 16, 1, 9, 0, 0x41, 0x10}, ErrBadOffset},
		{[]byte{0, 1, 0, 1, 6, 0, 0x41, 0x10}, bitmap.ErrSize},
		{[]byte{0, 1, 16, 1, 6, 0, 0x81, 0x10}, frame.ErrNoPrevious},
	}

	for _, table := range tables {
		_, err := Decode(table.b)
		assert.ErrorIs(t, err, table.err, "data %x", table.b)
	}
}
