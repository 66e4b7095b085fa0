/*
Package frame implements the encoder and decoder for a single animation frame.

Every frame starts with a header byte; the top two bits select the frame type
and for run-length encoded frames the bottom two bits hold the color one step
before the first run.

An uncompressed frame is followed by the packed rows of the frame verbatim.

A run-length encoded frame is followed by runs. The color of a run is never
stored, only that it changed from the previous run. Without delta coding there
are two colors and so the change is implied, leaving 7 bits for the length.
With delta coding the third color, transparent, means the pixel is copied from
the previous frame; bit 6 selects which of the two other colors comes next,
leaving 6 bits for the length. Longer lengths set bit 7 and continue in
further bytes, 7 bits at a time, most significant first, with bit 7 set on
every byte but the last.

A run with a length of zero is an escape; it is followed by bytes holding 7
literal pixels each, bit 6 first, with bit 7 set on every byte but the last.
*/
package frame

import (
	"errors"
	"fmt"
)

// Type is the frame type stored in the top two bits of the header byte.
type Type uint8

const (
	// Uncompressed frames store the packed rows verbatim.
	Uncompressed Type = iota
	// RLE frames are run-length encoded with no reference to any other
	// frame.
	RLE
	// RLEDelta frames are run-length encoded relative to the previous
	// frame.
	RLEDelta
)

func (t Type) String() string {
	switch t {
	case Uncompressed:
		return "uncompressed"
	case RLE:
		return "rle"
	case RLEDelta:
		return "rle delta"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// TypeOf returns the type of an encoded frame.
func TypeOf(b []byte) Type {
	if len(b) == 0 {
		return Uncompressed
	}
	return Type(b[0] >> typeShift)
}

const (
	typeShift        = 6
	initialColorMask = 0x03
	multiByteFlag    = 0x80
	deltaColorShift  = 6
	lengthMask       = 0x7f
	lengthMaskDelta  = 0x3f
	escapeBitsMask   = 0x7f
	solidEscape      = 0x7f
)

var (
	// ErrSameColor is returned when a run has the same color as the run
	// before it.
	ErrSameColor = errors.New("frame: run has the same color as the previous run")
	// ErrBadColor is returned when a run has a color the frame type can't
	// represent.
	ErrBadColor = errors.New("frame: invalid run color")
	// ErrSolidEscape is returned when the first byte of an escape holds 7
	// identical pixels, a single run would always be cheaper.
	ErrSolidEscape = errors.New("frame: escape starts with identical pixels")
	// ErrNoPrevious is returned when a transparent run is decoded without a
	// previous frame.
	ErrNoPrevious = errors.New("frame: transparent run without previous frame")
	// ErrBadType is returned for an unknown frame type.
	ErrBadType = errors.New("frame: invalid frame type")
	// ErrOverflow is returned when runs cover more pixels than the frame.
	ErrOverflow = errors.New("frame: runs overflow frame")

	errNotEnough = errors.New("frame: not enough frame data")
)
