package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bodgit/microanim"
	"github.com/bodgit/microanim/bitmap"
)

// fileConfig maps the keys of the optional TOML configuration file.
type fileConfig struct {
	Delta        bool `toml:"delta"`
	Invert       bool `toml:"invert"`
	Workers      int  `toml:"workers"`
	ScreenWidth  int  `toml:"screen_width"`
	ScreenHeight int  `toml:"screen_height"`
	I2CAddress   int  `toml:"i2c_address"`
	Loop         bool `toml:"loop"`
}

func loadConfig(path string) (microanim.Config, error) {
	cfg := microanim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return microanim.Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return microanim.Config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("delta") {
		cfg.Delta = raw.Delta
	}
	if meta.IsDefined("invert") {
		cfg.Invert = raw.Invert
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("screen_width") {
		cfg.Sketch.ScreenWidth = raw.ScreenWidth
	}
	if meta.IsDefined("screen_height") {
		cfg.Sketch.ScreenHeight = raw.ScreenHeight
	}
	if meta.IsDefined("i2c_address") {
		cfg.Sketch.Address = raw.I2CAddress
	}
	if meta.IsDefined("loop") {
		cfg.Sketch.Loop = raw.Loop
	}

	if cfg.Workers < 1 {
		return microanim.Config{}, fmt.Errorf("load config: workers must be at least 1, got %d", cfg.Workers)
	}
	if err := bitmap.ValidSize(cfg.Sketch.ScreenWidth, cfg.Sketch.ScreenHeight); err != nil {
		return microanim.Config{}, fmt.Errorf("load config: screen: %w", err)
	}
	if cfg.Sketch.Address < 0x08 || cfg.Sketch.Address > 0x77 {
		return microanim.Config{}, fmt.Errorf("load config: invalid i2c address %#x", cfg.Sketch.Address)
	}

	return cfg, nil
}
