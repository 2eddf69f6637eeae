// Package config loads the YAML configuration shared by the canvas client and
// the reference server.
//
// The file is chosen by the --config flag or the PLACE_CONFIG environment
// variable. Without either, built-in defaults are used unchanged. Command
// line flags are applied on top by the callers.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"place/place/palette"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "PLACE_CONFIG"

// Config is the full configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Canvas   CanvasConfig   `yaml:"canvas"`
	Viewport ViewportConfig `yaml:"viewport"`
	Window   WindowConfig   `yaml:"window"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig locates the canvas server.
type ServerConfig struct {
	// BaseURL is where the client connects, e.g. http://localhost:8080.
	BaseURL     string `yaml:"base_url"`
	CanvasPath  string `yaml:"canvas_path"`
	ConnectPath string `yaml:"connect_path"`

	// Listen is the reference server's bind address.
	Listen string `yaml:"listen"`
}

// CanvasConfig fixes the grid. Client and server must agree on it.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Palette lists colours as #rrggbb. Empty means the built-in 16.
	Palette []string `yaml:"palette"`

	Save SaveConfig `yaml:"save"`
}

// SaveConfig controls server-side persistence.
type SaveConfig struct {
	// Path is where the raw canvas is stored. Empty disables saving.
	// ${HOME} and ${VAR:-default} are expanded.
	Path string `yaml:"path"`
	// Interval between saves, as a Go duration.
	Interval string `yaml:"interval"`
}

// ViewportConfig tunes pan and zoom.
type ViewportConfig struct {
	ZoomSensitivity float64 `yaml:"zoom_sensitivity"`
	// WheelStep converts one wheel notch into a zoom delta.
	WheelStep float64 `yaml:"wheel_step"`
	// ClickThreshold is the largest travel, in pixels, still treated as a click.
	ClickThreshold float64 `yaml:"click_threshold"`
}

// WindowConfig sizes the desktop window.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:     "http://localhost:8080",
			CanvasPath:  "/api/canvas",
			ConnectPath: "/api/connect",
			Listen:      "127.0.0.1:8080",
		},
		Canvas: CanvasConfig{
			Width:  100,
			Height: 100,
			Save: SaveConfig{
				Interval: "30s",
			},
		},
		Viewport: ViewportConfig{
			ZoomSensitivity: 0.01,
			WheelStep:       10,
			ClickThreshold:  4,
		},
		Window: WindowConfig{
			Width:  960,
			Height: 720,
			Title:  "place",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, or the file named by PLACE_CONFIG when path is empty.
// With neither set it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads one YAML file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Canvas.Save.Path = expandVars(cfg.Canvas.Save.Path)
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Canvas.Width < 1 || c.Canvas.Width > 65536 {
		errs = append(errs, fmt.Errorf("canvas.width %d out of range [1, 65536]", c.Canvas.Width))
	}
	if c.Canvas.Height < 1 || c.Canvas.Height > 65536 {
		errs = append(errs, fmt.Errorf("canvas.height %d out of range [1, 65536]", c.Canvas.Height))
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.CanvasPath == "" {
		errs = append(errs, errors.New("server.canvas_path is required"))
	}
	if c.Server.ConnectPath == "" {
		errs = append(errs, errors.New("server.connect_path is required"))
	}
	if c.Viewport.ZoomSensitivity <= 0 {
		errs = append(errs, fmt.Errorf("viewport.zoom_sensitivity must be positive, got %v", c.Viewport.ZoomSensitivity))
	}
	if c.Viewport.WheelStep <= 0 {
		errs = append(errs, fmt.Errorf("viewport.wheel_step must be positive, got %v", c.Viewport.WheelStep))
	}
	if c.Viewport.ClickThreshold < 0 {
		errs = append(errs, fmt.Errorf("viewport.click_threshold must not be negative, got %v", c.Viewport.ClickThreshold))
	}
	if c.Canvas.Save.Path != "" {
		if _, err := c.SaveInterval(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Palette parses Canvas.Palette, falling back to the built-in palette.
func (c *Config) Palette() (palette.Palette, error) {
	if len(c.Canvas.Palette) == 0 {
		return palette.Default(), nil
	}
	return palette.Parse(c.Canvas.Palette)
}

// SaveInterval parses Canvas.Save.Interval.
func (c *Config) SaveInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Canvas.Save.Interval)
	if err != nil {
		return 0, fmt.Errorf("canvas.save.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("canvas.save.interval must be positive, got %v", d)
	}
	return d, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
