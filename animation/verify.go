package animation

import (
	"fmt"

	"github.com/pkg/errors"
)

// Verify decodes data and checks it reproduces a exactly. Any difference is
// a bug in the encoder; the returned error names the first frame and pixel
// that differ.
func Verify(a *Animation, data []byte) error {
	// data is a []byte so every value is already known to be 0-255, all
	// that's left to check is that it decodes
	got, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	switch {
	case len(got.Frames) != len(a.Frames):
		return errors.Wrapf(ErrVerify, "frame count expected %d but was %d", len(a.Frames), len(got.Frames))
	case got.Width != a.Width:
		return errors.Wrapf(ErrVerify, "width expected %d but was %d", a.Width, got.Width)
	case got.Height != a.Height:
		return errors.Wrapf(ErrVerify, "height expected %d but was %d", a.Height, got.Height)
	}

	for i, expected := range a.Frames {
		actual := got.Frames[i]
		if len(actual.Pix) != len(expected.Pix) {
			return errors.Wrapf(ErrVerify, "frame %d data size expected %d but was %d", i, len(expected.Pix), len(actual.Pix))
		}
		j, err := expected.Compare(actual)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVerify, err)
		}
		if j >= 0 {
			x, y := j%a.Width, j/a.Width
			return errors.Wrapf(ErrVerify, "frame %d pixel %d,%d expected %s but was %s\nexpected:\n%sactual:\n%s", i, x, y, expected.Pix[j], actual.Pix[j], expected, actual)
		}
	}

	return nil
}

// Compress encodes a, verifies the result decodes back to a and returns it.
// No result is returned unless verification passes.
func Compress(a *Animation, delta bool) (*Result, error) {
	r, err := a.Encode(delta)
	if err != nil {
		return nil, err
	}
	if err := Verify(a, r.Data); err != nil {
		return nil, err
	}
	return r, nil
}
