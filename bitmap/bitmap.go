/*
Package bitmap implements the monochrome frame model shared by the animation
encoder and decoder.

A frame is a row-major buffer of width * height pixels, each either
Background or Foreground. Both dimensions are limited to 1-255 pixels so they
fit in a single byte. The packed form stores each row in ceil(width / 8)
bytes, most significant bit first, which is the layout expected by
Adafruit_GFX drawBitmap.
*/
package bitmap

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSize is the largest width or height of a frame.
const MaxSize = 255

// Pixel is a single pixel value.
type Pixel uint8

const (
	// Background is an unlit pixel, stored as a 0 bit.
	Background Pixel = iota
	// Foreground is a lit pixel, stored as a 1 bit.
	Foreground
	// Transparent only appears in a delta view and means the pixel is
	// unchanged from the previous frame.
	Transparent
)

func (p Pixel) String() string {
	switch p {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	case Transparent:
		return "transparent"
	default:
		return fmt.Sprintf("pixel(%d)", uint8(p))
	}
}

func (p Pixel) rune() byte {
	switch p {
	case Background:
		return '-'
	case Foreground:
		return '#'
	case Transparent:
		return '.'
	default:
		return '?'
	}
}

var (
	// ErrSize is returned for frames with a dimension outside of 1-255.
	ErrSize = errors.New("bitmap: invalid frame size")
	// ErrMismatch is returned when two frames do not share dimensions.
	ErrMismatch = errors.New("bitmap: frame dimensions differ")
	// ErrPackedLength is returned when packed data is the wrong length.
	ErrPackedLength = errors.New("bitmap: packed data is wrong length")
)

// Frame is a single monochrome image.
type Frame struct {
	Width  int
	Height int
	// Pix holds Width*Height pixels in row-major order
	Pix []Pixel
}

// ValidSize reports an error if width or height can't be stored.
func ValidSize(width, height int) error {
	if width < 1 || width > MaxSize || height < 1 || height > MaxSize {
		return fmt.Errorf("%w: %dx%d, maximum is %dx%d", ErrSize, width, height, MaxSize, MaxSize)
	}
	return nil
}

// New returns an all background frame.
func New(width, height int) (*Frame, error) {
	if err := ValidSize(width, height); err != nil {
		return nil, err
	}
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]Pixel, width*height),
	}, nil
}

// RowBytes returns the number of packed bytes used by one row.
func RowBytes(width int) int {
	return (width + 7) >> 3
}

// PackedSize returns the number of packed bytes used by a whole frame.
func PackedSize(width, height int) int {
	return RowBytes(width) * height
}

// Unpack expands packed rows into a new frame.
func Unpack(width, height int, b []byte) (*Frame, error) {
	f, err := New(width, height)
	if err != nil {
		return nil, err
	}
	if len(b) != PackedSize(width, height) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrPackedLength, len(b), PackedSize(width, height))
	}

	stride := RowBytes(width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if b[y*stride+x>>3]&(0x80>>uint(x&7)) != 0 {
				f.Pix[y*width+x] = Foreground
			}
		}
	}
	return f, nil
}

// Pack returns the frame in packed form. Unused bits at the end of each row
// are zero.
func (f *Frame) Pack() []byte {
	stride := RowBytes(f.Width)
	b := make([]byte, stride*f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if f.Pix[y*f.Width+x] == Foreground {
				b[y*stride+x>>3] |= 0x80 >> uint(x&7)
			}
		}
	}
	return b
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) Pixel {
	return f.Pix[y*f.Width+x]
}

// Set changes the pixel at (x, y).
func (f *Frame) Set(x, y int, p Pixel) {
	f.Pix[y*f.Width+x] = p
}

// Compare returns the index of the first pixel that differs between f and o,
// or -1 if they are identical. Frames of different dimensions return
// ErrMismatch.
func (f *Frame) Compare(o *Frame) (int, error) {
	if f.Width != o.Width || f.Height != o.Height || len(f.Pix) != len(o.Pix) {
		return 0, fmt.Errorf("%w: %dx%d and %dx%d", ErrMismatch, f.Width, f.Height, o.Width, o.Height)
	}
	for i := range f.Pix {
		if f.Pix[i] != o.Pix[i] {
			return i, nil
		}
	}
	return -1, nil
}

// Equal reports whether f and o have the same dimensions and pixels.
func (f *Frame) Equal(o *Frame) bool {
	i, err := f.Compare(o)
	return err == nil && i < 0
}

// String renders the frame one row per line, '#' for foreground and '-' for
// background.
func (f *Frame) String() string {
	return Render(f.Width, f.Pix)
}

// Render draws an arbitrary pixel buffer, including delta views, as text.
func Render(width int, pix []Pixel) string {
	var sb strings.Builder
	for i, p := range pix {
		sb.WriteByte(p.rune())
		if (i+1)%width == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Delta returns the pixels of f with every pixel that matches prev replaced
// by Transparent.
func Delta(f, prev *Frame) ([]Pixel, error) {
	if f.Width != prev.Width || f.Height != prev.Height {
		return nil, fmt.Errorf("%w: %dx%d and %dx%d", ErrMismatch, f.Width, f.Height, prev.Width, prev.Height)
	}
	delta := make([]Pixel, len(f.Pix))
	for i, p := range f.Pix {
		if p == prev.Pix[i] {
			delta[i] = Transparent
		} else {
			delta[i] = p
		}
	}
	return delta, nil
}
