package render

import (
	"image"
	"image/color"

	"place/place/palette"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	swatchSize = 18
	swatchGap  = 2
	barPad     = 3
)

var (
	barBG      = color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xc0}
	textFG     = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	selectedFG = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}
)

// Overlay draws screen-space chrome: a status line along the top and a
// palette strip along the bottom. It is composited unscaled over the canvas.
type Overlay struct {
	pal  palette.Palette
	font tinyfont.Fonter
	img  *image.RGBA
	disp *rgbaDisplay

	lineH int16
}

// NewOverlay returns an overlay for pal.
func NewOverlay(pal palette.Palette) *Overlay {
	f := &proggy.TinySZ8pt7b
	return &Overlay{
		pal:   pal,
		font:  f,
		disp:  &rgbaDisplay{},
		lineH: int16(f.GetYAdvance()),
	}
}

// Draw repaints the overlay for a w×h screen and returns it. The image is
// reused across calls.
func (o *Overlay) Draw(w, h int, status string, selected uint8) *image.RGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	if o.img == nil || o.img.Bounds().Dx() != w || o.img.Bounds().Dy() != h {
		o.img = image.NewRGBA(image.Rect(0, 0, w, h))
		o.disp.img = o.img
	} else {
		clear(o.img.Pix)
	}

	barH := o.lineH + 2*barPad
	_ = o.disp.FillRectangle(0, 0, int16(w), barH, barBG)
	if status != "" {
		tinyfont.WriteLine(o.disp, o.font, barPad, barH-barPad-2, status, textFG)
	}

	stripY := h - swatchSize - 2*swatchGap
	_ = o.disp.FillRectangle(0, int16(stripY), int16(w), int16(h-stripY), barBG)
	for i := range o.pal {
		r, ok := o.swatchRect(i, w, h)
		if !ok {
			break
		}
		if uint8(i) == selected {
			_ = o.disp.FillRectangle(int16(r.Min.X-swatchGap), int16(r.Min.Y-swatchGap),
				int16(r.Dx()+2*swatchGap), int16(r.Dy()+2*swatchGap), selectedFG)
		}
		_ = o.disp.FillRectangle(int16(r.Min.X), int16(r.Min.Y), int16(r.Dx()), int16(r.Dy()), o.pal[i].RGBA())
	}
	return o.img
}

// SwatchAt reports which palette entry, if any, is drawn under screen point
// (x, y) on a w×h screen.
func (o *Overlay) SwatchAt(x, y, w, h int) (uint8, bool) {
	p := image.Pt(x, y)
	for i := range o.pal {
		r, ok := o.swatchRect(i, w, h)
		if !ok {
			return 0, false
		}
		if p.In(r) {
			return uint8(i), true
		}
	}
	return 0, false
}

// StripHeight is the height of the palette strip, in screen pixels.
func StripHeight() int { return swatchSize + 2*swatchGap }

func (o *Overlay) swatchRect(i, w, h int) (image.Rectangle, bool) {
	x := swatchGap + i*(swatchSize+swatchGap)
	if x+swatchSize > w {
		return image.Rectangle{}, false
	}
	y := h - swatchSize - swatchGap
	return image.Rect(x, y, x+swatchSize, y+swatchSize), true
}

// rgbaDisplay lets tinyfont draw into an image.RGBA.
type rgbaDisplay struct {
	img *image.RGBA
}

var _ drivers.Displayer = (*rgbaDisplay)(nil)

func (d *rgbaDisplay) Size() (x, y int16) {
	if d.img == nil {
		return 0, 0
	}
	b := d.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (d *rgbaDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.img == nil {
		return
	}
	d.img.SetRGBA(int(x), int(y), c)
}

func (d *rgbaDisplay) Display() error { return nil }

func (d *rgbaDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.img == nil {
		return nil
	}
	r := image.Rect(int(x), int(y), int(x)+int(width), int(y)+int(height)).Intersect(d.img.Bounds())
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			d.img.SetRGBA(px, py, c)
		}
	}
	return nil
}
