package render

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"place/place/palette"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// MaxExportScale bounds the upscale factor so a 65536-wide canvas cannot
// ask for an absurd image.
const MaxExportScale = 64

// ExportOptions controls snapshot export.
type ExportOptions struct {
	// Scale is the size of one cell in output pixels. Zero means 1.
	Scale int
	// Grid draws 1px cell borders when Scale is at least 4.
	Grid bool
}

// ExportPNG writes a PNG snapshot of g to w.
func ExportPNG(w io.Writer, g Grid, pal palette.Palette, opts ExportOptions) error {
	img, err := Snapshot(g, pal, opts)
	if err != nil {
		return err
	}
	dc := gg.NewContextForRGBA(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// ExportFile writes a PNG snapshot to path.
func ExportFile(path string, g Grid, pal palette.Palette, opts ExportOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("render: export: %w", cerr)
		}
	}()
	return ExportPNG(f, g, pal, opts)
}

// Snapshot renders g at the requested scale.
func Snapshot(g Grid, pal palette.Palette, opts ExportOptions) (*image.RGBA, error) {
	if len(pal) == 0 {
		return nil, ErrNoPalette
	}
	w, h := g.Width(), g.Height()
	if w <= 0 || h <= 0 {
		return nil, errors.New("render: empty canvas")
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	if scale > MaxExportScale {
		return nil, fmt.Errorf("render: export scale %d exceeds %d", scale, MaxExportScale)
	}

	base := image.NewRGBA(image.Rect(0, 0, w, h))
	paint(base, g, pal)
	if scale == 1 {
		return base, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)

	if opts.Grid && scale >= 4 {
		dc := gg.NewContextForRGBA(out)
		dc.SetRGBA(0, 0, 0, 0.25)
		dc.SetLineWidth(1)
		for x := 0; x <= w; x++ {
			fx := float64(x*scale) + 0.5
			dc.DrawLine(fx, 0, fx, float64(h*scale))
		}
		for y := 0; y <= h; y++ {
			fy := float64(y*scale) + 0.5
			dc.DrawLine(0, fy, float64(w*scale), fy)
		}
		dc.Stroke()
	}
	return out, nil
}
