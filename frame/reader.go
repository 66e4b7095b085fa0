package frame

import (
	"fmt"
	"io"

	"github.com/bodgit/microanim/bitmap"
	"github.com/bodgit/microanim/rle"
)

type decoder struct {
	r     io.ByteReader
	prev  *bitmap.Frame
	frame *bitmap.Frame

	delta bool
	mask  byte

	// Number of pixels decoded so far
	n int
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err == io.EOF {
		return 0, errNotEnough
	}
	return b, err
}

// next returns the color of the run described by header byte v following a
// run of color last.
func (d *decoder) next(last bitmap.Pixel, v byte) (bitmap.Pixel, error) {
	var c bitmap.Pixel
	if d.delta {
		c = (last + 1 + bitmap.Pixel(v>>deltaColorShift&1)) % 3
	} else {
		c = 1 - last
	}
	if c == last {
		return 0, fmt.Errorf("%w: %s at pixel %d", ErrSameColor, c, d.n)
	}
	return c, nil
}

func (d *decoder) readLength(v byte) (int, error) {
	length := int(v & d.mask)
	for v&multiByteFlag != 0 {
		var err error
		if v, err = d.readByte(); err != nil {
			return 0, err
		}
		length = length<<7 | int(v&lengthMask)
	}
	return length, nil
}

func (d *decoder) readEscape() (bitmap.Pixel, error) {
	var p bitmap.Pixel
	for {
		v, err := d.readByte()
		if err != nil {
			return 0, err
		}
		if d.n+rle.BlockSize > len(d.frame.Pix) {
			return 0, fmt.Errorf("%w: escape at pixel %d", ErrOverflow, d.n)
		}
		for i := rle.BlockSize - 1; i >= 0; i-- {
			p = bitmap.Pixel(v >> uint(i) & 1)
			d.frame.Pix[d.n] = p
			d.n++
		}
		if v&multiByteFlag == 0 {
			return p, nil
		}
	}
}

func (d *decoder) fill(c bitmap.Pixel, length int) error {
	if d.n+length > len(d.frame.Pix) {
		return fmt.Errorf("%w: run of %d at pixel %d", ErrOverflow, length, d.n)
	}
	if c == bitmap.Transparent {
		if d.prev == nil {
			return fmt.Errorf("%w: pixel %d", ErrNoPrevious, d.n)
		}
		copy(d.frame.Pix[d.n:d.n+length], d.prev.Pix[d.n:d.n+length])
	} else {
		for i := d.n; i < d.n+length; i++ {
			d.frame.Pix[i] = c
		}
	}
	d.n += length
	return nil
}

func (d *decoder) decodeRLE(header byte) error {
	last := bitmap.Pixel(header & initialColorMask)
	if (!d.delta && last > bitmap.Foreground) || last > bitmap.Transparent {
		return fmt.Errorf("%w: initial %s", ErrBadColor, last)
	}

	for d.n < len(d.frame.Pix) {
		v, err := d.readByte()
		if err != nil {
			return err
		}

		c, err := d.next(last, v)
		if err != nil {
			return err
		}

		length, err := d.readLength(v)
		if err != nil {
			return err
		}

		if length == 0 {
			if last, err = d.readEscape(); err != nil {
				return err
			}
			continue
		}

		if err := d.fill(c, length); err != nil {
			return err
		}
		last = c
	}

	return nil
}

func (d *decoder) decode(width, height int) error {
	header, err := d.readByte()
	if err != nil {
		return err
	}

	switch Type(header >> typeShift) {
	case Uncompressed:
		b := make([]byte, bitmap.PackedSize(width, height))
		for i := range b {
			if b[i], err = d.readByte(); err != nil {
				return err
			}
		}
		d.frame, err = bitmap.Unpack(width, height, b)
		return err
	case RLE:
		d.mask = lengthMask
	case RLEDelta:
		d.delta = true
		d.mask = lengthMaskDelta
	default:
		return fmt.Errorf("%w: %#02x", ErrBadType, header)
	}

	if d.frame, err = bitmap.New(width, height); err != nil {
		return err
	}

	return d.decodeRLE(header)
}

// Decode reads a single frame of the given dimensions from r. prev is the
// previously decoded frame, it is only required if the frame is delta
// encoded. Exactly the bytes of the frame are consumed from r.
func Decode(r io.ByteReader, width, height int, prev *bitmap.Frame) (*bitmap.Frame, error) {
	if err := bitmap.ValidSize(width, height); err != nil {
		return nil, err
	}
	if prev != nil && (prev.Width != width || prev.Height != height) {
		return nil, fmt.Errorf("%w: %dx%d and %dx%d", bitmap.ErrMismatch, width, height, prev.Width, prev.Height)
	}

	d := decoder{
		r:    r,
		prev: prev,
	}
	if err := d.decode(width, height); err != nil {
		return nil, err
	}
	return d.frame, nil
}
