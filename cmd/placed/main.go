// placed is the reference canvas server. It serves the raw snapshot over
// HTTP, relays cell writes to every WebSocket peer and, when canvas.save.path
// is set, persists the canvas on an interval and at shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/pflag"

	"place/internal/buildinfo"
	"place/internal/config"
	"place/internal/logging"
	"place/place/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		staticDir   string
		savePath    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("placed", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	flagSet.StringVar(&staticDir, "static", "", "serve files from this directory at /")
	flagSet.StringVar(&savePath, "save", "", "snapshot file, overrides canvas.save.path")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("placed", buildinfo.Long())
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if savePath != "" {
		cfg.Canvas.Save.Path = savePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	pal, err := cfg.Palette()
	if err != nil {
		return err
	}

	var initial []byte
	if p := cfg.Canvas.Save.Path; p != "" {
		initial, err = server.LoadFile(p)
		if err != nil {
			return err
		}
		if initial != nil {
			logger.Info("canvas restored", "path", p, "bytes", len(initial))
		}
	}

	srv, err := server.New(server.Options{
		Width:       cfg.Canvas.Width,
		Height:      cfg.Canvas.Height,
		PaletteSize: pal.Len(),
		Initial:     initial,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           routes(cfg, srv, staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	saveDone := make(chan struct{})
	if p := cfg.Canvas.Save.Path; p != "" {
		every, _ := cfg.SaveInterval()
		go func() {
			defer close(saveDone)
			_ = srv.Autosave(ctx, p, every)
		}()
	} else {
		close(saveDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen, "version", buildinfo.Short(),
			"width", cfg.Canvas.Width, "height", cfg.Canvas.Height, "palette", pal.Len())
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-saveDone
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Close()
	err = httpServer.Shutdown(shutdownCtx)
	<-saveDone
	return err
}

func routes(cfg *config.Config, srv *server.Server, staticDir string) http.Handler {
	api := srv.Handler(cfg.Server.CanvasPath, cfg.Server.ConnectPath)
	if staticDir == "" {
		return api
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.CanvasPath, api)
	mux.Handle(cfg.Server.ConnectPath, api)
	mux.Handle("/", gzhttp.GzipHandler(http.FileServer(http.Dir(staticDir))))
	return mux
}
