package hal

import (
	"fmt"
	"image"
	"sync"
)

// Framebuffer holds the last frame the app presented, in RGBA. Present and
// Snapshot may run on different goroutines.
type Framebuffer struct {
	mu      sync.Mutex
	width   int
	height  int
	buf     []byte
	version uint64
}

// NewFramebuffer allocates a transparent width×height framebuffer.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		buf:    make([]byte, width*height*4),
	}
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }

// Present copies a fully painted frame in one step.
func (f *Framebuffer) Present(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != f.width || b.Dy() != f.height {
		return fmt.Errorf("hal: present %dx%d into %dx%d framebuffer", b.Dx(), b.Dy(), f.width, f.height)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if img.Stride == f.width*4 && b.Min == (image.Point{}) {
		copy(f.buf, img.Pix)
	} else {
		row := f.width * 4
		for y := 0; y < f.height; y++ {
			off := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(f.buf[y*row:(y+1)*row], img.Pix[off:off+row])
		}
	}
	f.version++
	return nil
}

// Version increments on every Present.
func (f *Framebuffer) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Snapshot copies the framebuffer into dst and returns its version.
func (f *Framebuffer) Snapshot(dst []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(dst, f.buf)
	return f.version
}

// At returns the RGB colour at (x, y) and false outside the framebuffer.
func (f *Framebuffer) At(x, y int) (r, g, b uint8, ok bool) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, 0, 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := (y*f.width + x) * 4
	return f.buf[i], f.buf[i+1], f.buf[i+2], true
}
