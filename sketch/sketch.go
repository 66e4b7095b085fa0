/*
Package sketch generates the Arduino source that embeds a compressed
animation and plays it back with the MicroAnimation library on an SSD1306
display.
*/
package sketch

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
)

const (
	// DefaultScreenWidth is the width of the common 128x64 SSD1306 OLED.
	DefaultScreenWidth = 128
	// DefaultScreenHeight is the height of the common 128x64 SSD1306 OLED.
	DefaultScreenHeight = 64
	// DefaultAddress is the I2C address of the display.
	DefaultAddress = 0x3d
)

// Config controls the generated sketch.
type Config struct {
	ScreenWidth  int
	ScreenHeight int
	Address      int
	// Loop restarts the animation once it has finished
	Loop bool
}

// DefaultConfig returns the configuration for a 128x64 display.
func DefaultConfig() Config {
	return Config{
		ScreenWidth:  DefaultScreenWidth,
		ScreenHeight: DefaultScreenHeight,
		Address:      DefaultAddress,
		Loop:         true,
	}
}

var funcs = template.FuncMap{
	"bytes": func(b []byte) string {
		s := make([]string, len(b))
		for i, v := range b {
			s[i] = fmt.Sprint(v)
		}
		return strings.Join(s, ",")
	},
}

var sketchTemplate = template.Must(template.New("sketch").Funcs(funcs).Parse(`#include <Arduino.h>
#include <Adafruit_SSD1306.h>
#include <MicroAnimation.h>

#define SCREEN_I2C_ADDR {{printf "%#02x" .Address}}
#define SCREEN_WIDTH {{.ScreenWidth}}     // OLED display width, in pixels
#define SCREEN_HEIGHT {{.ScreenHeight}}     // OLED display height, in pixels
#define OLED_RST_PIN -1      // Reset pin (-1 if not available)

Adafruit_SSD1306 display(SCREEN_WIDTH, SCREEN_HEIGHT, &Wire, OLED_RST_PIN);

// clang-format off
const byte PROGMEM animationData[] = {{"{"}}{{bytes .Data}}{{"}"}};
// clang-format on

MicroAnimation animation(animationData, &display, {{.X}}, {{.Y}});

void setup() {
  display.begin(SSD1306_SWITCHCAPVCC, SCREEN_I2C_ADDR);
  display.clearDisplay();
  animation.start({{.Loop}});
}

void loop() {
  animation.update();
  // do other stuff
  delay(10);
}
`))

var headerTemplate = template.Must(template.New("header").Funcs(funcs).Parse(`// {{.Name}}: {{.Frames}} frames of {{.Width}}x{{.Height}}, {{len .Data}} bytes
#pragma once

#include <Arduino.h>

// clang-format off
const byte PROGMEM {{.Name}}[] = {{"{"}}{{bytes .Data}}{{"}"}};
// clang-format on
`))

type params struct {
	Config
	Name   string
	Width  int
	Height int
	Frames int
	X, Y   int
	Data   []byte
}

func newParams(data []byte) (params, error) {
	if len(data) < 4 {
		return params{}, errors.New("sketch: data too short")
	}
	return params{
		Frames: int(data[1]),
		Width:  int(data[2]),
		Height: int(data[3]),
		Data:   data,
	}, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Identifier turns name into a valid C identifier.
func Identifier(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !isDigit(c) && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			b[i] = '_'
		}
	}
	if len(b) == 0 || isDigit(b[0]) {
		b = append([]byte{'_'}, b...)
	}
	return string(b)
}

// Fits reports whether an animation of width by height fits on the screen.
func (c Config) Fits(width, height int) bool {
	return width <= c.ScreenWidth && height <= c.ScreenHeight
}

// Write writes a complete sketch playing back data, an encoded animation,
// centered on the screen.
func Write(w io.Writer, c Config, data []byte) error {
	p, err := newParams(data)
	if err != nil {
		return err
	}
	p.Config = c
	// Rounds down, an animation larger than the screen gets negative
	// offsets and is clipped by the display driver
	p.X = (c.ScreenWidth - p.Width) >> 1
	p.Y = (c.ScreenHeight - p.Height) >> 1

	return sketchTemplate.Execute(w, p)
}

// WriteHeader writes a header declaring data, an encoded animation, as a
// PROGMEM array called name.
func WriteHeader(w io.Writer, name string, data []byte) error {
	p, err := newParams(data)
	if err != nil {
		return err
	}
	p.Name = Identifier(name)

	return headerTemplate.Execute(w, p)
}
