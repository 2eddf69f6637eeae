package hal

import (
	"image"
	"image/color"
	"math"
)

// Compose renders what a host would show on a w×h screen: the framebuffer
// pixels in fb (RGBA, fbW×fbH) placed by f, with f.Overlay blended on top
// and bg everywhere else. dst is reused when it already has the right size.
func Compose(dst *image.RGBA, fb []byte, fbW, fbH int, f Frame, w, h int, bg color.RGBA) *image.RGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	if dst == nil || dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	left, top := f.TopLeft(fbW, fbH)
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride:]
		fy := -1
		if f.Scale > 0 {
			fy = int(math.Floor((float64(y) + 0.5 - top) / f.Scale))
		}
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			p[0], p[1], p[2], p[3] = bg.R, bg.G, bg.B, bg.A
			if fy < 0 || fy >= fbH {
				continue
			}
			fx := int(math.Floor((float64(x) + 0.5 - left) / f.Scale))
			if fx < 0 || fx >= fbW {
				continue
			}
			i := (fy*fbW + fx) * 4
			if fb[i+3] == 0 {
				continue
			}
			copy(p, fb[i:i+4])
		}
	}

	if ov := f.Overlay; ov != nil {
		b := ov.Bounds().Intersect(dst.Bounds())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				s := ov.Pix[ov.PixOffset(x, y):]
				a := uint32(s[3])
				if a == 0 {
					continue
				}
				d := dst.Pix[dst.PixOffset(x, y):]
				inv := 255 - a
				for c := 0; c < 3; c++ {
					d[c] = uint8((uint32(s[c])*255 + uint32(d[c])*inv) / 255)
				}
				d[3] = uint8(a + uint32(d[3])*inv/255)
			}
		}
	}
	return dst
}
