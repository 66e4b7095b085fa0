package frame

import (
	"fmt"

	"github.com/bodgit/microanim/bitmap"
	"github.com/bodgit/microanim/rle"
)

type encoder struct {
	pix    []bitmap.Pixel
	delta  bool
	colors int
	max    int
	b      []byte
}

func newEncoder(pix []bitmap.Pixel, delta bool) *encoder {
	e := &encoder{
		pix:    pix,
		delta:  delta,
		colors: 2,
		max:    rle.MaxShortRLE,
	}
	if delta {
		e.colors = 3
		e.max = rle.MaxShortDelta
	}
	return e
}

// Lengths are written as 7-bit groups, most significant first, with bit 7
// set on all but the last. The first group shares its byte with the color
// bits so must fit in the short length field.
func (e *encoder) writeLength(bits byte, length int) {
	if length <= e.max {
		e.b = append(e.b, bits|byte(length))
		return
	}

	var tmp [4]byte
	i := len(tmp) - 1
	tmp[i] = byte(length & lengthMask)
	length >>= 7
	for length > e.max {
		i--
		tmp[i] = multiByteFlag | byte(length&lengthMask)
		length >>= 7
	}
	i--
	tmp[i] = bits | multiByteFlag | byte(length)

	e.b = append(e.b, tmp[i:]...)
}

func (e *encoder) writeEscape(start, length int) (bitmap.Pixel, error) {
	var last bitmap.Pixel

	// Zero length marker, a run can never be empty
	e.b = append(e.b, 0)

	blocks := length / rle.BlockSize
	for i := 0; i < blocks; i++ {
		var bits byte
		for j := 0; j < rle.BlockSize; j++ {
			last = e.pix[start+i*rle.BlockSize+j]
			bits = bits<<1 | byte(last)
		}
		if i == 0 && (bits == 0 || bits == solidEscape) {
			return 0, fmt.Errorf("%w: pixel %d", ErrSolidEscape, start)
		}
		if i < blocks-1 {
			bits |= multiByteFlag
		}
		e.b = append(e.b, bits)
	}

	return last, nil
}

func (e *encoder) encode(runs []rle.Run) ([]byte, error) {
	t := RLE
	if e.delta {
		t = RLEDelta
	}

	// The first run is then a change like every other run. An escape counts
	// as one below Background.
	last := bitmap.Pixel(e.colors - 2)
	if runs[0].Pixel != rle.Escape {
		last = bitmap.Pixel((int(runs[0].Pixel) + e.colors - 1) % e.colors)
	}
	e.b = append(e.b, byte(t)<<typeShift|byte(last))

	var pixel int
	for i, r := range runs {
		if r.Pixel == rle.Escape {
			if r.Length%rle.BlockSize != 0 {
				return nil, fmt.Errorf("%w: escape of %d pixels at run %d", ErrBadColor, r.Length, i)
			}
			var err error
			if last, err = e.writeEscape(pixel, r.Length); err != nil {
				return nil, err
			}
			pixel += r.Length
			continue
		}

		if int(r.Pixel) >= e.colors {
			return nil, fmt.Errorf("%w: %s at run %d", ErrBadColor, r.Pixel, i)
		}
		if r.Pixel == last {
			return nil, fmt.Errorf("%w: %s at run %d", ErrSameColor, r.Pixel, i)
		}

		var bits byte
		if e.delta {
			bits = byte((int(r.Pixel)-int(last)+e.colors)%e.colors-1) << deltaColorShift
		}
		e.writeLength(bits, r.Length)

		last = r.Pixel
		pixel += r.Length
	}

	return e.b, nil
}

// EncodeRLE run-length encodes f. If prev is not nil, f is encoded relative
// to it and must share its dimensions.
func EncodeRLE(f, prev *bitmap.Frame) ([]byte, error) {
	var delta []bitmap.Pixel
	if prev != nil {
		var err error
		if delta, err = bitmap.Delta(f, prev); err != nil {
			return nil, err
		}
	}

	runs := rle.Optimize(rle.Scan(f.Pix, delta), f.Pix)

	return newEncoder(f.Pix, prev != nil).encode(runs)
}

// EncodeUncompressed returns f as an uncompressed frame.
func EncodeUncompressed(f *bitmap.Frame) []byte {
	return append([]byte{byte(Uncompressed) << typeShift}, f.Pack()...)
}

// Encode returns the smallest encoding of f. A run-length encoding without
// reference to any other frame is always tried, if prev is not nil then one
// relative to it is also tried. If neither is smaller than the packed rows
// then the frame is stored uncompressed.
func Encode(f, prev *bitmap.Frame) ([]byte, error) {
	if err := bitmap.ValidSize(f.Width, f.Height); err != nil {
		return nil, err
	}

	b, err := EncodeRLE(f, nil)
	if err != nil {
		return nil, err
	}

	if prev != nil {
		d, err := EncodeRLE(f, prev)
		if err != nil {
			return nil, err
		}
		if len(d) < len(b) {
			b = d
		}
	}

	if len(b) > bitmap.PackedSize(f.Width, f.Height) {
		b = EncodeUncompressed(f)
	}

	return b, nil
}
