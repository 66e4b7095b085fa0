package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/ioutil"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/bitmap"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/nfnt/resize"
)

var errNoFrames = errors.New("image: no frames")

// Options control how images are converted.
type Options struct {
	// Width and Height scale every frame to an exact size if both are
	// non-zero
	Width  int
	Height int
	// Invert makes the darker color the foreground
	Invert bool
}

// luma returns the relative brightness of c, 0-65535.
func luma(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return (19595*r + 38470*g + 7471*b + 1<<15) >> 16
}

type decoder struct {
	opts    Options
	palette color.Palette
	fg      int
}

// choosePalette picks the two colors used for every frame from the first
// one so the foreground doesn't flip between frames.
func (d *decoder) choosePalette(m image.Image) {
	q := quantize.MedianCutQuantizer{}
	d.palette = q.Quantize(make(color.Palette, 0, 2), m)

	switch len(d.palette) {
	case 0:
		d.palette = color.Palette{color.Black, color.White}
	case 1:
		// Single color image, treat it as background unless it's bright
		if luma(d.palette[0]) >= 1<<15 {
			d.palette = append(color.Palette{color.Black}, d.palette[0])
		} else {
			d.palette = append(d.palette, color.White)
		}
	}

	d.fg = 0
	if luma(d.palette[1]) > luma(d.palette[0]) {
		d.fg = 1
	}
	if d.opts.Invert {
		d.fg = 1 - d.fg
	}
}

func (d *decoder) scale(m image.Image) image.Image {
	b := m.Bounds()
	switch {
	case d.opts.Width > 0 && d.opts.Height > 0:
		if b.Dx() != d.opts.Width || b.Dy() != d.opts.Height {
			return resize.Resize(uint(d.opts.Width), uint(d.opts.Height), m, resize.NearestNeighbor)
		}
	case b.Dx() > maxSize || b.Dy() > maxSize:
		return resize.Thumbnail(maxSize, maxSize, m, resize.NearestNeighbor)
	}
	return m
}

func (d *decoder) convert(m image.Image) (*bitmap.Frame, error) {
	m = d.scale(m)
	b := m.Bounds()

	if d.palette == nil {
		d.choosePalette(m)
	}

	f, err := bitmap.New(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if d.palette.Index(m.At(x, y)) == d.fg {
				f.Set(x-b.Min.X, y-b.Min.Y, bitmap.Foreground)
			}
		}
	}
	return f, nil
}

// frames composites the frames of an animated GIF onto a canvas honoring
// each frame's disposal method.
func frames(g *gif.GIF) []image.Image {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}

	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)

	out := make([]image.Image, 0, len(g.Image))
	for i, p := range g.Image {
		var saved *image.RGBA
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			saved = image.NewRGBA(bounds)
			draw.Draw(saved, bounds, canvas, bounds.Min, draw.Src)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)

		frame := image.NewRGBA(bounds)
		draw.Draw(frame, bounds, canvas, bounds.Min, draw.Src)
		out = append(out, frame)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return out
}

// Decode reads an image from r and converts it to an animation.
func Decode(r io.Reader, opts Options) (*animation.Animation, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var images []image.Image
	if _, format, err := image.DecodeConfig(bytes.NewReader(b)); err == nil && format == "gif" {
		g, err := gif.DecodeAll(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		images = frames(g)
	} else {
		m, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		images = []image.Image{m}
	}

	if len(images) == 0 {
		return nil, errNoFrames
	}

	d := decoder{opts: opts}

	var a *animation.Animation
	for _, m := range images {
		f, err := d.convert(m)
		if err != nil {
			return nil, err
		}
		if a == nil {
			if a, err = animation.New(f.Width, f.Height); err != nil {
				return nil, err
			}
		}
		if err := a.Add(f); err != nil {
			return nil, err
		}
	}

	return a, nil
}
