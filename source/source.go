/*
Package source parses animations from the C source written by common bitmap
conversion tools for Arduino sketches.

The dimensions are taken from FRAME_WIDTH and FRAME_HEIGHT macros and the
frames from a PROGMEM array named frames:

	#define FRAME_WIDTH (32)
	#define FRAME_HEIGHT (32)

	const byte PROGMEM frames[][128] = {
	  {0, 0, 0x3c, B00011000, ...},
	  {...},
	};

Each frame is ceil(width / 8) * height bytes of packed rows. A flat array is
split into frames of that size.
*/
package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/bitmap"
)

var (
	widthRegexp  = regexp.MustCompile(`#define\s+FRAME_WIDTH\s+\(?\s*(\d+)\s*\)?`)
	heightRegexp = regexp.MustCompile(`#define\s+FRAME_HEIGHT\s+\(?\s*(\d+)\s*\)?`)
	framesRegexp = regexp.MustCompile(`(?:static\s+)?const\s+(?:byte|uint8_t|unsigned\s+char)\s+(?:PROGMEM\s+)?frames\s*[\[\]0-9 ]*(?:PROGMEM\s*)?=\s*(\{[^;]*\})\s*;`)

	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

var (
	// ErrNoWidth is returned when there is no FRAME_WIDTH macro.
	ErrNoWidth = errors.New("source: no FRAME_WIDTH definition")
	// ErrNoHeight is returned when there is no FRAME_HEIGHT macro.
	ErrNoHeight = errors.New("source: no FRAME_HEIGHT definition")
	// ErrNoFrames is returned when there is no frames array.
	ErrNoFrames = errors.New("source: no frames array")
	// ErrSyntax is returned for a malformed frames array.
	ErrSyntax = errors.New("source: invalid frames array")
)

func extract(re *regexp.Regexp, code string, notFound error) (string, error) {
	m := re.FindStringSubmatch(code)
	if m == nil {
		return "", notFound
	}
	return m[1], nil
}

func parseByte(tok string) (byte, error) {
	// Arduino binary constant, B0 to B11111111
	if len(tok) > 1 && tok[0] == 'B' && strings.Trim(tok[1:], "01") == "" {
		v, err := strconv.ParseUint(tok[1:], 2, 8)
		return byte(v), err
	}
	tok = strings.TrimRight(tok, "uUlL")
	v, err := strconv.ParseUint(tok, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: bad value %q", ErrSyntax, tok)
	}
	return byte(v), nil
}

// parseArray returns the values in a brace-delimited initializer, one slice
// per inner brace pair. Values at the outermost level are returned as a
// single slice.
func parseArray(s string) ([][]byte, error) {
	var (
		rows  [][]byte
		row   []byte
		flat  []byte
		depth int
		tok   strings.Builder
	)

	flush := func() error {
		if tok.Len() == 0 {
			return nil
		}
		v, err := parseByte(tok.String())
		tok.Reset()
		if err != nil {
			return err
		}
		switch depth {
		case 1:
			flat = append(flat, v)
		case 2:
			row = append(row, v)
		default:
			return fmt.Errorf("%w: value outside array", ErrSyntax)
		}
		return nil
	}

	for _, r := range s {
		switch {
		case r == '{':
			if err := flush(); err != nil {
				return nil, err
			}
			depth++
			if depth > 2 {
				return nil, fmt.Errorf("%w: too deeply nested", ErrSyntax)
			}
			row = []byte{}
		case r == '}':
			if err := flush(); err != nil {
				return nil, err
			}
			if depth == 2 {
				rows = append(rows, row)
			}
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced braces", ErrSyntax)
			}
		case r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			tok.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced braces", ErrSyntax)
	}

	if len(rows) > 0 && len(flat) > 0 {
		return nil, fmt.Errorf("%w: mixed nested and flat values", ErrSyntax)
	}
	if len(flat) > 0 {
		return [][]byte{flat}, nil
	}
	return rows, nil
}

// Parse returns the animation described by code.
func Parse(code []byte) (*animation.Animation, error) {
	s := blockComment.ReplaceAllString(string(code), "")
	s = lineComment.ReplaceAllString(s, "")

	ws, err := extract(widthRegexp, s, ErrNoWidth)
	if err != nil {
		return nil, err
	}
	hs, err := extract(heightRegexp, s, ErrNoHeight)
	if err != nil {
		return nil, err
	}
	width, err := strconv.Atoi(ws)
	if err != nil {
		return nil, err
	}
	height, err := strconv.Atoi(hs)
	if err != nil {
		return nil, err
	}

	a, err := animation.New(width, height)
	if err != nil {
		return nil, err
	}

	fs, err := extract(framesRegexp, s, ErrNoFrames)
	if err != nil {
		return nil, err
	}
	rows, err := parseArray(fs)
	if err != nil {
		return nil, err
	}

	size := bitmap.PackedSize(width, height)
	if len(rows) == 1 && len(rows[0]) > size && len(rows[0])%size == 0 {
		flat := rows[0]
		rows = rows[:0]
		for i := 0; i < len(flat); i += size {
			rows = append(rows, flat[i:i+size])
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoFrames
	}

	for _, row := range rows {
		if err := a.AddPacked(row); err != nil {
			return nil, err
		}
	}

	return a, nil
}
