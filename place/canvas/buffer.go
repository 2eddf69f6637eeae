// Package canvas holds the client's copy of the shared grid: one colour index
// per cell plus a single dirty flag telling the render loop that something
// changed since the last paint.
//
// A Buffer is not safe for concurrent use. The client touches it only from
// its event loop; the reference server guards its instance with a mutex.
package canvas

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

var (
	ErrOutOfBounds  = errors.New("canvas: cell out of bounds")
	ErrSizeMismatch = errors.New("canvas: bootstrap size mismatch")
)

// SizeMismatchError reports a bootstrap payload of the wrong length.
type SizeMismatchError struct {
	Got, Want int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("canvas: bootstrap payload is %d bytes, want %d", e.Got, e.Want)
}

func (e *SizeMismatchError) Is(target error) bool { return target == ErrSizeMismatch }

// Buffer is a width×height grid of colour indices stored row-major.
// Every entry is always below the palette size.
type Buffer struct {
	width       int
	height      int
	paletteSize int
	cells       []uint8
	dirty       bool
}

// New allocates a buffer with every cell set to colour 0.
func New(width, height, paletteSize int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas: invalid size %dx%d", width, height)
	}
	if paletteSize <= 0 || paletteSize > 256 {
		return nil, fmt.Errorf("canvas: invalid palette size %d", paletteSize)
	}
	return &Buffer{
		width:       width,
		height:      height,
		paletteSize: paletteSize,
		cells:       make([]uint8, width*height),
	}, nil
}

func (b *Buffer) Width() int       { return b.width }
func (b *Buffer) Height() int      { return b.height }
func (b *Buffer) PaletteSize() int { return b.paletteSize }
func (b *Buffer) Len() int         { return len(b.cells) }

// Index returns the colour at linear index i (y*width+x).
func (b *Buffer) Index(i int) uint8 { return b.cells[i] }

// Bootstrap replaces every cell from raw, one byte per cell in row-major
// order, and marks the buffer dirty. On a length mismatch the buffer is left
// untouched.
func (b *Buffer) Bootstrap(raw []byte) error {
	if len(raw) != len(b.cells) {
		return &SizeMismatchError{Got: len(raw), Want: len(b.cells)}
	}
	for i, c := range raw {
		b.cells[i] = b.wrap(c)
	}
	b.dirty = true
	return nil
}

// SetCell writes color (reduced modulo the palette size) at (x, y) and marks
// the buffer dirty, even when the value does not change.
func (b *Buffer) SetCell(x, y int, color uint8) error {
	if !b.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) on %dx%d", ErrOutOfBounds, x, y, b.width, b.height)
	}
	b.cells[y*b.width+x] = b.wrap(color)
	b.dirty = true
	return nil
}

// Cell returns the colour at (x, y).
func (b *Buffer) Cell(x, y int) (uint8, error) {
	if !b.InBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d,%d) on %dx%d", ErrOutOfBounds, x, y, b.width, b.height)
	}
	return b.cells[y*b.width+x], nil
}

// InBounds reports whether (x, y) addresses a cell.
func (b *Buffer) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// ConsumeDirty reports whether anything was written since the previous call
// and clears the flag.
func (b *Buffer) ConsumeDirty() bool {
	d := b.dirty
	b.dirty = false
	return d
}

// Snapshot returns a copy of the cells in bootstrap wire order.
func (b *Buffer) Snapshot() []byte {
	out := make([]byte, len(b.cells))
	copy(out, b.cells)
	return out
}

// Digest returns the BLAKE3 hash of the cell data.
func (b *Buffer) Digest() [32]byte {
	return blake3.Sum256(b.cells)
}

func (b *Buffer) wrap(c uint8) uint8 {
	return uint8(int(c) % b.paletteSize)
}
