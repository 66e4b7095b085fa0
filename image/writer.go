package image

import (
	"image"
	"image/color"
	"image/gif"
	"io"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/bitmap"
)

var palette = color.Palette{color.Black, color.White}

type encoder struct {
	w     io.Writer
	delay int
}

func (e *encoder) encode(a *animation.Animation) error {
	g := &gif.GIF{
		Config: image.Config{
			ColorModel: palette,
			Width:      a.Width,
			Height:     a.Height,
		},
	}

	r := image.Rect(0, 0, a.Width, a.Height)
	for _, f := range a.Frames {
		m := image.NewPaletted(r, palette)
		for i, p := range f.Pix {
			if p == bitmap.Foreground {
				m.Pix[i/a.Width*m.Stride+i%a.Width] = 1
			}
		}
		g.Image = append(g.Image, m)
		g.Delay = append(g.Delay, e.delay)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}

	return gif.EncodeAll(e.w, g)
}

// Encode writes the animation a to w as an animated GIF with delay 100ths of
// a second between frames.
func Encode(w io.Writer, a *animation.Animation, delay int) error {
	if len(a.Frames) == 0 {
		return errNoFrames
	}
	e := encoder{w: w, delay: delay}
	return e.encode(a)
}
