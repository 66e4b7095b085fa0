/*
Package image converts between raster images and monochrome animations.

Any image format registered with the standard image package can be read; an
animated GIF becomes one frame per GIF frame. Images larger than 255 pixels in
either direction are scaled down to fit. Each image is reduced to two colors
with a median cut quantizer and the brighter of the two becomes the
foreground.

Animations are written back out as animated GIFs with a black background and
white foreground.
*/
package image

import "github.com/bodgit/microanim/bitmap"

const (
	maxSize = bitmap.MaxSize

	// DefaultDelay is the delay between frames in 100ths of a second used
	// when writing GIFs.
	DefaultDelay = 10
)
