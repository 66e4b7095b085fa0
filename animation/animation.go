/*
Package animation implements the container holding every encoded frame of an
animation.

The container starts with a four byte header; a version byte which is always
zero, the number of frames, the width and the height. This is followed by a
directory of little-endian 16-bit offsets, one per frame, each counting from
the start of the container to the first byte of that frame. The encoded frames
follow the directory in playback order.

Frames may be delta encoded against the frame before them so decoding must
walk the frames in order.
*/
package animation

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bodgit/microanim/bitmap"
	"github.com/bodgit/microanim/frame"
	"github.com/pkg/errors"
)

const (
	version    = 0
	headerSize = 4
	offsetSize = 2

	// MaxFrames is the most frames an animation can hold.
	MaxFrames = 255
	// MaxLength is the largest container that can be addressed by the
	// frame directory, the last frame must start before this.
	MaxLength = 0xffff
)

var (
	// ErrTooManyFrames is returned when an animation has more than
	// MaxFrames frames.
	ErrTooManyFrames = errors.New("animation: too many frames")
	// ErrNoFrames is returned when an animation has no frames.
	ErrNoFrames = errors.New("animation: no frames")
	// ErrTooLarge is returned when a frame would start beyond MaxLength.
	ErrTooLarge = errors.New("animation: encoded data too large")
	// ErrBadVersion is returned for an unknown container version.
	ErrBadVersion = errors.New("animation: unsupported version")
	// ErrBadOffset is returned when a directory entry points outside the
	// container.
	ErrBadOffset = errors.New("animation: invalid frame offset")
	// ErrVerify is returned when decoding the encoded animation doesn't
	// reproduce the original.
	ErrVerify = errors.New("animation: verification failed")

	errNotEnough = errors.New("animation: not enough data")
)

// Animation is an ordered sequence of frames sharing the same dimensions.
type Animation struct {
	Width  int
	Height int
	Frames []*bitmap.Frame
}

// New returns an empty animation.
func New(width, height int) (*Animation, error) {
	if err := bitmap.ValidSize(width, height); err != nil {
		return nil, err
	}
	return &Animation{
		Width:  width,
		Height: height,
	}, nil
}

// Add appends f to the animation.
func (a *Animation) Add(f *bitmap.Frame) error {
	if f.Width != a.Width || f.Height != a.Height {
		return fmt.Errorf("%w: frame %d is %dx%d, animation is %dx%d", bitmap.ErrMismatch, len(a.Frames), f.Width, f.Height, a.Width, a.Height)
	}
	if len(a.Frames) == MaxFrames {
		return ErrTooManyFrames
	}
	a.Frames = append(a.Frames, f)
	return nil
}

// AddPacked unpacks b and appends it to the animation.
func (a *Animation) AddPacked(b []byte) error {
	f, err := bitmap.Unpack(a.Width, a.Height, b)
	if err != nil {
		return errors.Wrapf(err, "frame %d", len(a.Frames))
	}
	return a.Add(f)
}

// PackedSize returns the size in bytes of every frame stored as packed rows.
func (a *Animation) PackedSize() int {
	return len(a.Frames) * bitmap.PackedSize(a.Width, a.Height)
}

// FrameInfo describes how a single frame was encoded.
type FrameInfo struct {
	Type frame.Type
	// Size of the encoded frame, including the header byte
	Size int
	// Original size of the frame as packed rows
	Original int
}

// Result holds an encoded animation.
type Result struct {
	Width  int
	Height int
	Delta  bool
	Frames []FrameInfo
	Data   []byte
}

func (a *Animation) validate() error {
	if err := bitmap.ValidSize(a.Width, a.Height); err != nil {
		return err
	}
	switch {
	case len(a.Frames) == 0:
		return ErrNoFrames
	case len(a.Frames) > MaxFrames:
		return ErrTooManyFrames
	}
	for i, f := range a.Frames {
		if f.Width != a.Width || f.Height != a.Height || len(f.Pix) != a.Width*a.Height {
			return fmt.Errorf("%w: frame %d is %dx%d, animation is %dx%d", bitmap.ErrMismatch, i, f.Width, f.Height, a.Width, a.Height)
		}
	}
	return nil
}

// Encode encodes every frame and builds the container. If delta is true each
// frame may be encoded relative to the one before it.
func (a *Animation) Encode(delta bool) (*Result, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}

	r := &Result{
		Width:  a.Width,
		Height: a.Height,
		Delta:  delta,
		Frames: make([]FrameInfo, 0, len(a.Frames)),
	}

	encoded := make([][]byte, 0, len(a.Frames))
	var prev *bitmap.Frame
	for i, f := range a.Frames {
		b, err := frame.Encode(f, prev)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		encoded = append(encoded, b)
		r.Frames = append(r.Frames, FrameInfo{
			Type:     frame.TypeOf(b),
			Size:     len(b),
			Original: bitmap.PackedSize(a.Width, a.Height),
		})
		if delta {
			prev = f
		}
	}

	buf := bytes.NewBuffer([]byte{version, byte(len(a.Frames)), byte(a.Width), byte(a.Height)})

	offset := headerSize + offsetSize*len(a.Frames)
	for i, b := range encoded {
		if offset > MaxLength {
			return nil, errors.Wrapf(ErrTooLarge, "frame %d at offset %d", i, offset)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(offset)); err != nil {
			return nil, err
		}
		offset += len(b)
	}

	for _, b := range encoded {
		if _, err := buf.Write(b); err != nil {
			return nil, err
		}
	}

	r.Data = buf.Bytes()

	return r, nil
}

// Decode decodes every frame in the container b.
func Decode(b []byte) (*Animation, error) {
	if len(b) < headerSize {
		return nil, errNotEnough
	}
	if b[0] != version {
		return nil, errors.Wrapf(ErrBadVersion, "version %d", b[0])
	}

	count := int(b[1])
	a, err := New(int(b[2]), int(b[3]))
	if err != nil {
		return nil, err
	}

	if len(b) < headerSize+offsetSize*count {
		return nil, errNotEnough
	}

	var prev *bitmap.Frame
	for i := 0; i < count; i++ {
		offset := int(binary.LittleEndian.Uint16(b[headerSize+offsetSize*i:]))
		if offset < headerSize+offsetSize*count || offset >= len(b) {
			return nil, errors.Wrapf(ErrBadOffset, "frame %d at offset %d", i, offset)
		}

		f, err := frame.Decode(bytes.NewReader(b[offset:]), a.Width, a.Height, prev)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		if err := a.Add(f); err != nil {
			return nil, err
		}
		prev = f
	}

	return a, nil
}
