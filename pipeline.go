package microanim

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/microanim/sketch"
)

// SourceExt is the extension of the C sources picked up by Scan.
const SourceExt = ".h"

// SketchExt is the extension of the sketches written by Scan.
const SketchExt = ".ino"

func (c *Compressor) findSources(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || filepath.Ext(file) != SourceExt {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (c *Compressor) compressFile(file string) error {
	code, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}

	// Headers without any frames are just skipped
	if !bytes.Contains(code, []byte("FRAME_WIDTH")) {
		c.logger.Debug().Str("file", file).Msg("no animation")
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	r, err := c.CompressSource(name, code)
	if err != nil {
		return &FileError{File: file, Err: err}
	}

	if !c.config.Sketch.Fits(r.Width, r.Height) {
		c.logger.Warn().Str("file", file).Int("width", r.Width).Int("height", r.Height).Msg("animation larger than the screen, it will be clipped")
	}

	var b bytes.Buffer
	if err := sketch.Write(&b, c.config.Sketch, r.Data); err != nil {
		return &FileError{File: file, Err: err}
	}

	out := strings.TrimSuffix(file, filepath.Ext(file)) + SketchExt
	if err := ioutil.WriteFile(out, b.Bytes(), 0644); err != nil {
		return err
	}
	c.logger.Info().Str("file", out).Msg("wrote sketch")

	return nil
}

func (c *Compressor) sourceWorker(ctx context.Context, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := c.compressFile(file); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan walks path and compresses every animation source found, writing a
// sketch next to each one.
func (c *Compressor) Scan(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := c.findSources(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < c.config.Workers; i++ {
		errc, err := c.sourceWorker(ctx, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
