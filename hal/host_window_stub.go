//go:build !cgo

package hal

import "errors"

// WindowConfig sizes the desktop window.
type WindowConfig struct {
	Width, Height int
	Title         string
	TPS           int
}

func RunWindow(_ *Framebuffer, _ func(*Framebuffer) (App, error), _ WindowConfig) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
