// Package render turns the canvas buffer into pixels. The loop repaints the
// whole canvas only when the buffer reports a change, into an off-screen
// image, and hands the finished image to the host in one call.
package render

import (
	"errors"
	"image"
	"log/slog"

	"place/internal/logging"
	"place/place/palette"
)

// Grid is a read-only row-major view of cell colour indices.
type Grid interface {
	Width() int
	Height() int
	Index(i int) uint8
}

// Cells is the view of the canvas the loop needs.
type Cells interface {
	Grid
	ConsumeDirty() bool
}

// Surface receives fully painted frames. The image is only valid for the
// duration of the call; implementations copy what they keep.
type Surface interface {
	Present(img *image.RGBA) error
}

var ErrNoPalette = errors.New("render: empty palette")

// Loop repaints on demand. It is driven by the host's per-frame callback
// through Tick and is not safe for concurrent use.
type Loop struct {
	cells   Cells
	pal     palette.Palette
	surface Surface
	log     *slog.Logger

	img     *image.RGBA
	running bool
	frames  uint64
}

// NewLoop returns a stopped loop.
func NewLoop(cells Cells, pal palette.Palette, surface Surface, log *slog.Logger) (*Loop, error) {
	if len(pal) == 0 {
		return nil, ErrNoPalette
	}
	return &Loop{
		cells:   cells,
		pal:     pal,
		surface: surface,
		log:     logging.Or(log).With("component", "render"),
		img:     image.NewRGBA(image.Rect(0, 0, cells.Width(), cells.Height())),
	}, nil
}

// Start enables painting. The first Tick after Start paints if the buffer
// is dirty.
func (l *Loop) Start() { l.running = true }

// Stop disables painting; later ticks do nothing.
func (l *Loop) Stop() { l.running = false }

func (l *Loop) Running() bool { return l.running }

// Frames returns how many frames were presented.
func (l *Loop) Frames() uint64 { return l.frames }

// Tick is called once per display frame. It repaints and presents when the
// buffer changed since the previous paint, and reports whether it did.
func (l *Loop) Tick() (bool, error) {
	if !l.running {
		return false, nil
	}
	if !l.cells.ConsumeDirty() {
		return false, nil
	}
	l.Paint()
	if l.surface != nil {
		if err := l.surface.Present(l.img); err != nil {
			return true, err
		}
	}
	l.frames++
	return true, nil
}

// Paint rewrites every pixel of the off-screen image from the buffer. It
// does not present.
func (l *Loop) Paint() {
	paint(l.img, l.cells, l.pal)
}

func paint(dst *image.RGBA, g Grid, pal palette.Palette) {
	pix := dst.Pix
	n := g.Width() * g.Height()
	for i := 0; i < n; i++ {
		c := pal.At(g.Index(i))
		j := i * 4
		pix[j+0] = c.R
		pix[j+1] = c.G
		pix[j+2] = c.B
		pix[j+3] = 0xff
	}
}

// Image returns the off-screen image. Callers must not keep it across ticks.
func (l *Loop) Image() *image.RGBA { return l.img }
