/*
Package rle builds the run lists that the frame encoder writes.

A frame is decomposed into maximal runs of identical pixels. When a delta view
against the previous frame is available the longer of the raw run and the
delta run is taken at every position. Stretches of many short runs are then
rewritten as escape runs, literal blocks of 7 pixels that are cheaper to store
than the runs they replace.
*/
package rle

import (
	"fmt"
	"sort"

	"github.com/bodgit/microanim/bitmap"
)

const (
	// BlockSize is the number of pixels stored literally in each escape
	// data byte.
	BlockSize = 7

	// MaxShortRLE is the longest run that fits in a single byte without
	// delta coding.
	MaxShortRLE = 0x7f
	// MaxShortDelta is the longest run that fits in a single byte with
	// delta coding, one bit is used to select the next color.
	MaxShortDelta = 0x3f
)

// Escape marks a run whose pixels are stored literally. It is never a real
// pixel value.
const Escape bitmap.Pixel = 0xff

// Run is a span of Length pixels of the same color, or an escaped span when
// Pixel is Escape.
type Run struct {
	Pixel  bitmap.Pixel
	Length int
}

func (r Run) String() string {
	if r.Pixel == Escape {
		return fmt.Sprintf("escape-%d", r.Length)
	}
	return fmt.Sprintf("%s-%d", r.Pixel, r.Length)
}

func next(pix []bitmap.Pixel, i int) Run {
	r := Run{Pixel: pix[i], Length: 1}
	for i+r.Length < len(pix) && pix[i+r.Length] == r.Pixel {
		r.Length++
	}
	return r
}

// Scan decomposes raw into runs. If delta is not nil it must be the same
// length as raw and at each position the longer of the delta and raw runs is
// used.
//
// A pixel may be Transparent for only a short stretch before the delta view
// continues with the same raw color it had before the gap, preferring the
// raw run stops that from splitting into extra runs.
func Scan(raw, delta []bitmap.Pixel) []Run {
	data := raw
	if delta != nil {
		data = delta
	}

	var runs []Run
	for i := 0; i < len(data); {
		r := next(data, i)
		if o := next(raw, i); o.Length > r.Length {
			r = o
		}
		runs = append(runs, r)
		i += r.Length
	}
	return runs
}

// RunSize returns the number of bytes used to encode an ordinary run.
func RunSize(length int, delta bool) int {
	max := MaxShortRLE
	if delta {
		max = MaxShortDelta
	}
	n := 1
	for length > max {
		length >>= 7
		n++
	}
	return n
}

// Size returns the number of bytes used to encode runs, not counting the
// frame header byte.
func Size(runs []Run, delta bool) int {
	n := 0
	for _, r := range runs {
		if r.Pixel == Escape {
			n += 1 + r.Length/BlockSize
		} else {
			n += RunSize(r.Length, delta)
		}
	}
	return n
}

// Optimize returns a copy of runs with spans of short runs replaced by
// escape runs where that saves bytes. raw must be the raw pixels that runs
// were scanned from.
//
// Candidate spans always end on a run boundary and are scanned from the end
// of the frame backwards. For each boundary the span is grown 7 pixels at a
// time while the saving, the number of runs replaced minus the escape cost,
// doesn't drop. The run that the start of the span falls in is shortened
// rather than replaced.
func Optimize(runs []Run, raw []bitmap.Pixel) []Run {
	result := make([]Run, len(runs))
	copy(result, runs)

	// starts[i] is the first pixel of runs[i], the final entry is the
	// total number of pixels
	starts := make([]int, len(runs)+1)
	for i, r := range runs {
		starts[i+1] = starts[i] + r.Length
	}

	// runAt returns the index of the run containing pixel p, -1 for any
	// pixel before the first and len(runs) for any pixel after the last
	runAt := func(p int) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > p }) - 1
	}

	for last := len(runs) - 1; last >= 0; last-- {
		end := starts[last+1]

		// The run after an escape encodes a change from the last
		// escaped pixel so the two can't be the same color
		if last+1 < len(runs) && raw[end-1] == runs[last+1].Pixel {
			continue
		}

		best, bestBlocks := -1, 0
		for blocks := 1; end-blocks*BlockSize >= 0; blocks++ {
			start := end - blocks*BlockSize
			replaced := last - runAt(start-1)
			saving := replaced - (blocks + 1)
			if saving < 0 || saving < best {
				break
			}
			if saving > best {
				best, bestBlocks = saving, blocks
			}
		}
		if best <= 0 {
			continue
		}

		start := end - bestBlocks*BlockSize
		first := runAt(start-1) + 1
		if first > 0 {
			result[first-1].Length = start - starts[first-1]
		}
		result = append(result[:first], append([]Run{{Pixel: Escape, Length: bestBlocks * BlockSize}}, result[last+1:]...)...)

		// Carry on from the run the escape start fell in, it can't end
		// another escape as the two would just merge into one
		last = first - 1
	}

	return result
}
