// Package hal hosts an App: a desktop window, a terminal or a headless
// ticker. Each host calls Step once per display frame from a single
// goroutine and forwards input between steps, so apps need no locking of
// their own.
package hal

import (
	"errors"
	"image"
)

// ErrQuit is returned from App.Step to end the host cleanly.
var ErrQuit = errors.New("hal: quit")

// App is driven by a host.
type App interface {
	// Step runs one frame of application work.
	Step() error
	// Resize reports the drawable size in screen pixels.
	Resize(w, h int)
	Pointer(ev PointerEvent)
	Key(ev KeyEvent)
	// Frame describes how to show the framebuffer this frame.
	Frame() Frame
}

// Frame places the framebuffer on screen. The framebuffer's centre lands
// at (OffsetX, OffsetY) and each framebuffer pixel covers Scale screen
// pixels. Overlay, when set, is drawn unscaled on top.
type Frame struct {
	OffsetX, OffsetY float64
	Scale            float64
	Overlay          *image.RGBA
	Status           string
}

// TopLeft returns the screen position of framebuffer pixel (0, 0).
func (f Frame) TopLeft(fbWidth, fbHeight int) (x, y float64) {
	return f.OffsetX - f.Scale*float64(fbWidth)/2, f.OffsetY - f.Scale*float64(fbHeight)/2
}

// PointerKind is the kind of pointer event.
type PointerKind uint8

const (
	PointerDown PointerKind = iota + 1
	PointerMove
	PointerUp
	PointerWheel
	// PointerCancel abandons a gesture, e.g. when the pointer leaves the window.
	PointerCancel
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerWheel:
		return "wheel"
	case PointerCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// PointerEvent is a primary-button or wheel event in screen pixels.
type PointerEvent struct {
	Kind PointerKind
	X, Y float64
	// Wheel is the vertical scroll in notches; positive scrolls up (away
	// from the user).
	Wheel float64
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
)

// KeyEvent is a keyboard event. Text input arrives with Code KeyUnknown and
// Rune set.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}
