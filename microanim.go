/*
Package microanim is a library for compressing monochrome animations into the
compact format played back by the MicroAnimation Arduino library.
*/
package microanim

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/image"
	"github.com/bodgit/microanim/sketch"
	"github.com/bodgit/microanim/source"
	"github.com/rs/zerolog"
)

// Config controls how animations are compressed.
type Config struct {
	// Delta allows frames to be encoded relative to the previous frame
	Delta bool
	// Invert swaps foreground and background when reading images
	Invert bool
	// Workers is the number of files compressed concurrently by Scan
	Workers int
	Sketch  sketch.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Delta:   true,
		Workers: 4,
		Sketch:  sketch.DefaultConfig(),
	}
}

// Compressor compresses animations, optionally caching the results in a
// database.
type Compressor struct {
	db     *DB
	config Config
	logger zerolog.Logger
}

// New returns a Compressor. db may be nil in which case nothing is cached.
func New(db *DB, config Config, logger zerolog.Logger) *Compressor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Compressor{
		db:     db,
		config: config,
		logger: logger,
	}
}

func (c *Compressor) report(name string, a *animation.Animation, r *animation.Result) {
	for i, f := range r.Frames {
		c.logger.Debug().Str("name", name).Int("frame", i).Int("from", f.Original).Int("to", f.Size).Stringer("type", f.Type).Msg("compressed frame")
	}
	c.logger.Info().Str("name", name).Int("frames", len(a.Frames)).Int("width", a.Width).Int("height", a.Height).Int("from", a.PackedSize()).Int("to", len(r.Data)).Bool("delta", r.Delta).Msg("compressed animation")
}

// Compress encodes and verifies a. name is only used for logging and when
// caching.
func (c *Compressor) Compress(name string, a *animation.Animation) (*animation.Result, error) {
	return c.compress(name, "", a)
}

func (c *Compressor) compress(name, sha string, a *animation.Animation) (*animation.Result, error) {
	r, err := animation.Compress(a, c.config.Delta)
	if err != nil {
		return nil, err
	}
	c.report(name, a, r)

	if c.db != nil && sha != "" {
		if _, err := c.db.Add(sha, name, a, r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (c *Compressor) cached(name, sha string) (*animation.Result, error) {
	if c.db == nil {
		return nil, nil
	}
	rec, err := c.db.FindBySHA1(sha, c.config.Delta)
	if err != nil || rec == nil {
		return nil, err
	}

	// Only trust the cache if it still decodes
	a, err := animation.Decode(rec.Data)
	if err != nil {
		c.logger.Warn().Err(err).Str("name", name).Str("sha1", sha).Msg("ignoring cached animation")
		return nil, nil
	}

	r, err := a.Encode(c.config.Delta)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(r.Data, rec.Data) {
		c.logger.Warn().Str("name", name).Str("sha1", sha).Msg("cached animation differs, recompressing")
		return nil, nil
	}

	c.logger.Debug().Str("name", name).Str("sha1", sha).Msg("using cached animation")
	return r, nil
}

// CompressSource parses and compresses the C source in code.
func (c *Compressor) CompressSource(name string, code []byte) (*animation.Result, error) {
	sha := SHA1(code)
	if r, err := c.cached(name, sha); err != nil || r != nil {
		return r, err
	}

	a, err := source.Parse(code)
	if err != nil {
		return nil, err
	}
	return c.compress(name, sha, a)
}

// imageKey identifies an image along with the options used to read it, the
// same image can give different frames.
func imageKey(b []byte, opts image.Options) string {
	h := sha1.New()
	h.Write(b)
	fmt.Fprintf(h, "\x00%d,%d,%t", opts.Width, opts.Height, opts.Invert)
	return fmt.Sprintf("%X", h.Sum(nil))
}

// CompressImage reads and compresses the image in r.
func (c *Compressor) CompressImage(name string, r io.Reader, opts image.Options) (*animation.Result, error) {
	if c.config.Invert {
		opts.Invert = !opts.Invert
	}

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	sha := imageKey(b, opts)
	if res, err := c.cached(name, sha); err != nil || res != nil {
		return res, err
	}

	a, err := image.Decode(bytes.NewReader(b), opts)
	if err != nil {
		return nil, err
	}
	return c.compress(name, sha, a)
}
