//go:build cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var keyMap = []struct {
	key  ebiten.Key
	code KeyCode
}{
	{ebiten.KeyArrowUp, KeyUp},
	{ebiten.KeyArrowDown, KeyDown},
	{ebiten.KeyArrowLeft, KeyLeft},
	{ebiten.KeyArrowRight, KeyRight},
	{ebiten.KeyEnter, KeyEnter},
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyBackspace, KeyBackspace},
	{ebiten.KeyTab, KeyTab},
	{ebiten.KeyDelete, KeyDelete},
	{ebiten.KeyHome, KeyHome},
	{ebiten.KeyEnd, KeyEnd},
}

// inputState turns ebiten's polled input into App events.
type inputState struct {
	down   bool
	lastX  int
	lastY  int
	inside bool
}

func (s *inputState) poll(app App) {
	x, y := ebiten.CursorPosition()
	fx, fy := float64(x), float64(y)

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		s.down = true
		app.Pointer(PointerEvent{Kind: PointerDown, X: fx, Y: fy})
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		if s.down {
			s.down = false
			app.Pointer(PointerEvent{Kind: PointerUp, X: fx, Y: fy})
		}
	case s.down && (x != s.lastX || y != s.lastY):
		app.Pointer(PointerEvent{Kind: PointerMove, X: fx, Y: fy})
	}
	s.lastX, s.lastY = x, y

	// The cursor leaving the window mid-drag abandons the gesture.
	w, h := ebiten.WindowSize()
	inside := x >= 0 && y >= 0 && x < w && y < h
	if s.down && s.inside && !inside {
		s.down = false
		app.Pointer(PointerEvent{Kind: PointerCancel, X: fx, Y: fy})
	}
	s.inside = inside

	if _, dy := ebiten.Wheel(); dy != 0 {
		app.Pointer(PointerEvent{Kind: PointerWheel, X: fx, Y: fy, Wheel: dy})
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		app.Key(KeyEvent{Press: true, Rune: r})
	}
	for _, m := range keyMap {
		if inpututil.IsKeyJustPressed(m.key) {
			app.Key(KeyEvent{Code: m.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(m.key) {
			app.Key(KeyEvent{Code: m.code, Press: false})
		}
	}
}
