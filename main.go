// place is a client for a shared pixel canvas. It opens a window by default;
// --tui draws into the terminal and --headless runs without a display.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"place/app"
	"place/hal"
	"place/internal/buildinfo"
	"place/internal/config"
	"place/internal/logging"
	"place/place/render"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		serverURL   string
		width       int
		height      int
		headless    bool
		tui         bool
		hz          int
		ticks       uint64
		exportPath  string
		exportScale int
		logLevel    string
		logFile     string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("place", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&serverURL, "server", "", "server base URL, overrides server.base_url")
	flagSet.IntVar(&width, "width", 0, "canvas width, overrides canvas.width")
	flagSet.IntVar(&height, "height", 0, "canvas height, overrides canvas.height")
	flagSet.BoolVar(&headless, "headless", false, "run without a display")
	flagSet.BoolVar(&tui, "tui", false, "draw into the terminal")
	flagSet.IntVar(&hz, "hz", 60, "step rate for --headless and --tui")
	flagSet.Uint64Var(&ticks, "ticks", 0, "stop after N steps in headless mode (0 = run until interrupted)")
	flagSet.StringVar(&exportPath, "export", "", "write a PNG of the canvas here on exit")
	flagSet.IntVar(&exportScale, "export-scale", app.ExportScale, "cell size in pixels for --export")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides log.level")
	flagSet.StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("place", buildinfo.Long())
		return nil
	}
	if headless && tui {
		return errors.New("--headless and --tui are mutually exclusive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if width > 0 {
		cfg.Canvas.Width = width
	}
	if height > 0 {
		cfg.Canvas.Height = height
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, logFile, tui)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Info("starting", "version", buildinfo.Short(), "server", cfg.Server.BaseURL,
		"width", cfg.Canvas.Width, "height", cfg.Canvas.Height)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fb := hal.NewFramebuffer(cfg.Canvas.Width, cfg.Canvas.Height)
	var client *app.App
	newApp := func(fb *hal.Framebuffer) (hal.App, error) {
		a, err := app.New(ctx, fb, app.Options{Config: cfg, Logger: logger})
		if err != nil {
			return nil, err
		}
		client = a
		return a, nil
	}

	switch {
	case headless:
		err = hal.RunHeadless(ctx, fb, newApp, hal.HeadlessConfig{
			Enabled: true,
			Hz:      hz,
			Ticks:   ticks,
			Width:   cfg.Window.Width,
			Height:  cfg.Window.Height,
		})
	case tui:
		err = hal.RunTerminal(ctx, fb, newApp, hal.TerminalConfig{Hz: hz})
	default:
		err = hal.RunWindow(fb, newApp, hal.WindowConfig{
			Width:  cfg.Window.Width,
			Height: cfg.Window.Height,
			Title:  cfg.Window.Title,
		})
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if client != nil {
		if exportPath != "" {
			if xerr := client.Export(exportPath, render.ExportOptions{Scale: exportScale}); xerr != nil {
				err = errors.Join(err, xerr)
			}
		}
		client.Close()
	}
	return err
}

// newLogger writes to logFile when set. The terminal host owns the screen,
// so without a log file it logs nowhere.
func newLogger(cfg *config.Config, logFile string, tui bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case tui:
		return logging.Nop(), closeFn, nil
	}
	l, err := logging.New(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return l, closeFn, nil
}
