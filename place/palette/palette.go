// Package palette holds the fixed, ordered colour table that cell values index
// into. Colours never travel over the wire; only their indices do.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// MaxSize is the largest palette a one-byte colour index can address.
const MaxSize = 256

var ErrEmpty = errors.New("palette: empty")

// Color is an opaque RGB triple.
type Color struct {
	R, G, B uint8
}

// RGBA returns c with full alpha.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Hex formats c as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// FromHex splits a 0xRRGGBB value.
func FromHex(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Palette is an ordered colour table. Index 0 is the default cell colour.
type Palette []Color

var defaultHex = [...]uint32{
	0xffffff, // white
	0xe4e4e4, // light grey
	0x888888, // grey
	0x222222, // black
	0xffa7d1, // pink
	0xe50000, // red
	0xe59500, // orange
	0xa06a42, // brown
	0xe5d900, // yellow
	0x94e044, // lime
	0x02be01, // green
	0x00d3dd, // cyan
	0x0083c7, // blue
	0x0000ea, // dark blue
	0xcf6ee4, // magenta
	0x820080, // purple
}

// Default returns a fresh copy of the 16-colour palette.
func Default() Palette {
	p := make(Palette, len(defaultHex))
	for i, v := range defaultHex {
		p[i] = FromHex(v)
	}
	return p
}

// Parse builds a palette from "#rrggbb", "rrggbb" or "0xrrggbb" strings.
func Parse(specs []string) (Palette, error) {
	if len(specs) == 0 {
		return nil, ErrEmpty
	}
	if len(specs) > MaxSize {
		return nil, fmt.Errorf("palette: %d colours, max %d", len(specs), MaxSize)
	}
	p := make(Palette, 0, len(specs))
	for i, s := range specs {
		c, err := parseColor(s)
		if err != nil {
			return nil, fmt.Errorf("palette: entry %d: %w", i, err)
		}
		p = append(p, c)
	}
	return p, nil
}

func parseColor(s string) (Color, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "#")
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != 6 {
		return Color{}, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("bad colour %q", s)
	}
	return FromHex(uint32(v)), nil
}

// Len returns the number of colours.
func (p Palette) Len() int { return len(p) }

// At returns the colour for index i, wrapping indices past the end.
// It panics on an empty palette.
func (p Palette) At(i uint8) Color {
	return p[int(i)%len(p)]
}

// Validate reports whether p can back a canvas.
func (p Palette) Validate() error {
	if len(p) == 0 {
		return ErrEmpty
	}
	if len(p) > MaxSize {
		return fmt.Errorf("palette: %d colours, max %d", len(p), MaxSize)
	}
	return nil
}

// Strings formats every entry with Hex.
func (p Palette) Strings() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}
