package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
	// Width and Height are the pretend screen size reported to the app.
	Width, Height int
}

// RunHeadless drives the app on a ticker without any display. It returns
// nil after cfg.Ticks steps or when the app quits, and ctx.Err() when ctx
// ends first.
func RunHeadless(ctx context.Context, fb *Framebuffer, newApp func(*Framebuffer) (App, error), cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}

	app, err := newApp(fb)
	if err != nil {
		return err
	}
	app.Resize(cfg.Width, cfg.Height)

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := app.Step(); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				return err
			}
			tick++
			if cfg.Ticks > 0 && tick >= cfg.Ticks {
				return nil
			}
		}
	}
}
