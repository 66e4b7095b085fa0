package main

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bodgit/microanim"
	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/image"
	"github.com/bodgit/microanim/sketch"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const defaultDB = "microanim.db"

var imageExts = map[string]bool{
	".gif":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) zerolog.Logger {
	if !c.Bool("verbose") {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func newConfig(c *cli.Context) (microanim.Config, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.Bool("no-delta") {
		cfg.Delta = false
	}
	if c.Bool("invert") {
		cfg.Invert = true
	}
	return cfg, nil
}

// run opens the database if needed and hands a Compressor to fn.
func run(c *cli.Context, withDB bool, fn func(*microanim.Compressor, *microanim.DB) error) error {
	cfg, err := newConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	var db *microanim.DB
	if withDB {
		if db, err = microanim.NewDB(c.String("db")); err != nil {
			return cli.NewExitError(err, 1)
		}
		defer db.Close()
	}

	if err := fn(microanim.New(db, cfg, newLogger(c)), db); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func printReport(w io.Writer, r *animation.Result) {
	var original int
	for i, f := range r.Frames {
		fmt.Fprintf(w, "frame %3d: %-12s %5d -> %5d\n", i, f.Type, f.Original, f.Size)
		original += f.Original
	}
	fmt.Fprintf(w, "%dx%d, %d frames, %d -> %d bytes", r.Width, r.Height, len(r.Frames), original, len(r.Data))
	if original > 0 {
		fmt.Fprintf(w, " (%.1f%%)", 100*float64(len(r.Data))/float64(original))
	}
	if r.Delta {
		fmt.Fprint(w, ", delta")
	}
	fmt.Fprintln(w)
}

func compress(c *cli.Context, m *microanim.Compressor) error {
	file := c.Args().First()
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	var r *animation.Result
	if imageExts[strings.ToLower(filepath.Ext(file))] {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		opts := image.Options{
			Width:  c.Int("width"),
			Height: c.Int("height"),
		}
		if r, err = m.CompressImage(name, f, opts); err != nil {
			return err
		}
	} else {
		code, err := ioutil.ReadFile(file)
		if err != nil {
			return err
		}
		if r, err = m.CompressSource(name, code); err != nil {
			return err
		}
	}

	printReport(os.Stdout, r)

	var (
		b   bytes.Buffer
		ext string
	)
	switch {
	case c.Bool("binary"):
		b.Write(r.Data)
		ext = ".bin"
	case c.Bool("header"):
		if err := sketch.WriteHeader(&b, name, r.Data); err != nil {
			return err
		}
		ext = microanim.SourceExt
	default:
		cfg, err := newConfig(c)
		if err != nil {
			return err
		}
		if err := sketch.Write(&b, cfg.Sketch, r.Data); err != nil {
			return err
		}
		ext = microanim.SketchExt
	}

	out := c.String("output")
	if out == "" {
		out = strings.TrimSuffix(file, filepath.Ext(file)) + ext
	}
	if out == "-" {
		_, err := os.Stdout.Write(b.Bytes())
		return err
	}
	if out == file {
		return fmt.Errorf("refusing to overwrite %s", file)
	}

	return ioutil.WriteFile(out, b.Bytes(), 0644)
}

func show(c *cli.Context, a *animation.Animation) error {
	if out := c.String("gif"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := image.Encode(f, a, c.Int("delay")); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	for i, f := range a.Frames {
		fmt.Printf("frame %d:\n%s\n", i, f)
	}
	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "microanim"
	app.Usage = "MicroAnimation compression utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"MICROANIM_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to database",
		},
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"MICROANIM_CONFIG"},
			Usage:   "path to TOML configuration",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	gifFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "gif",
			Usage: "write an animated GIF to `FILE` instead of printing the frames",
		},
		&cli.IntFlag{
			Name:  "delay",
			Value: image.DefaultDelay,
			Usage: "GIF frame delay in 100ths of a second",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "compress",
			Usage:     "Compress an animation source or image",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "no-delta",
					Usage: "disable delta frames",
				},
				&cli.BoolFlag{
					Name:  "header",
					Usage: "write a header instead of a sketch",
				},
				&cli.BoolFlag{
					Name:  "binary",
					Usage: "write the raw compressed animation",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "write to `FILE`, - for stdout",
				},
				&cli.BoolFlag{
					Name:  "invert",
					Usage: "swap foreground and background of images",
				},
				&cli.IntFlag{
					Name:  "width",
					Usage: "scale images to this width",
				},
				&cli.IntFlag{
					Name:  "height",
					Usage: "scale images to this height",
				},
				&cli.BoolFlag{
					Name:  "store",
					Usage: "cache the result in the database",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return run(c, c.Bool("store"), func(m *microanim.Compressor, _ *microanim.DB) error {
					return compress(c, m)
				})
			},
		},
		{
			Name:      "decompress",
			Usage:     "Decompress a raw compressed animation",
			ArgsUsage: "FILE",
			Flags:     gifFlags,
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				b, err := ioutil.ReadFile(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				a, err := animation.Decode(b)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := show(c, a); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "scan",
			Usage:     "Scan filesystem and compress every animation source into a sketch",
			ArgsUsage: "DIRECTORY",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "no-delta",
					Usage: "disable delta frames",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return run(c, true, func(m *microanim.Compressor, _ *microanim.DB) error {
					return m.Scan(c.Args().First())
				})
			},
		},
		{
			Name:  "list",
			Usage: "List the animations in the database",
			Action: func(c *cli.Context) error {
				return run(c, true, func(_ *microanim.Compressor, db *microanim.DB) error {
					records, err := db.List()
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tSIZE\tFRAMES\tDELTA\tBYTES\tSHA1")
					for _, r := range records {
						fmt.Fprintf(w, "%d\t%s\t%dx%d\t%d\t%v\t%d\t%s\n", r.ID, r.Name, r.Width, r.Height, r.Frames, r.Delta, r.Size, r.SHA1)
					}
					return w.Flush()
				})
			},
		},
		{
			Name:      "show",
			Usage:     "Show an animation stored in the database",
			ArgsUsage: "ID",
			Flags:     gifFlags,
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				id, err := strconv.ParseInt(c.Args().First(), 10, 64)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				return run(c, true, func(_ *microanim.Compressor, db *microanim.DB) error {
					_, a, err := db.Load(id)
					if err != nil {
						return err
					}
					return show(c, a)
				})
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
