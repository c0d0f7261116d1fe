// Package options holds the configuration shared by every command.
package options

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const appName = "glowsaver"

// Pointer buttons that gate iMouse updates.
const (
	ButtonRight = "right"
	ButtonLeft  = "left"
	ButtonAny   = "any"
	ButtonNone  = "none"
)

// RecordOptions configures offscreen recording.
type RecordOptions struct {
	Output   string  `toml:"output"`
	Duration float64 `toml:"duration"`
	FPS      int     `toml:"fps"`
	FFmpeg   string  `toml:"ffmpeg"` // path to the ffmpeg binary; empty uses PATH
}

// Options is the persisted configuration.
type Options struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Database       string `toml:"database"`
	ShaderID       int64  `toml:"shader_id"` // last selected shader, 0 for none
	Concurrency    int    `toml:"concurrency"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	Fullscreen     bool   `toml:"fullscreen"`
	VSync          bool   `toml:"vsync"`
	ShowFPS        bool   `toml:"show_fps"`
	PointerButton  string `toml:"pointer_button"`
	Translate      bool   `toml:"translate"`
	RequestTimeout int    `toml:"request_timeout"` // seconds

	Record RecordOptions `toml:"record"`

	keyFromEnv bool
}

// Default returns the built-in configuration.
func Default() *Options {
	dbPath := appName + ".db"
	if dir, err := DataDir(); err == nil {
		dbPath = filepath.Join(dir, dbPath)
	}
	return &Options{
		BaseURL:        "https://www.shadertoy.com/api/v1",
		Database:       dbPath,
		Concurrency:    128,
		Width:          1280,
		Height:         720,
		VSync:          true,
		PointerButton:  ButtonRight,
		RequestTimeout: 30,
		Record: RecordOptions{
			Output:   "output.mp4",
			Duration: 10,
			FPS:      60,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// An empty API key falls back to SHADERTOY_KEY.
func Load(path string) (*Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, opts); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("SHADERTOY_KEY")
		opts.keyFromEnv = opts.APIKey != ""
	}
	return opts, nil
}

// Save writes the configuration to path, creating its directory. A key
// taken from the environment is not written.
func (o *Options) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out := *o
	if out.keyFromEnv {
		out.APIKey = ""
	}
	data, err := toml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// RegisterFlags binds command-line flags to o. Current values become the
// flag defaults, so flags override whatever was loaded.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.APIKey, "apikey", o.APIKey, "Shadertoy API key (default $SHADERTOY_KEY)")
	fs.StringVar(&o.BaseURL, "api", o.BaseURL, "Shadertoy API base URL")
	fs.StringVar(&o.Database, "db", o.Database, "Path to the shader database")
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Maximum concurrent shader fetches during sync")
	fs.IntVar(&o.Width, "width", o.Width, "Window width")
	fs.IntVar(&o.Height, "height", o.Height, "Window height")
	fs.BoolVar(&o.Fullscreen, "fullscreen", o.Fullscreen, "Run fullscreen as a screensaver")
	fs.BoolVar(&o.VSync, "vsync", o.VSync, "Synchronise presentation to the display")
	fs.BoolVar(&o.ShowFPS, "fps", o.ShowFPS, "Log frames per second")
	fs.StringVar(&o.PointerButton, "button", o.PointerButton, "Mouse button that drives iMouse: right, left, any or none")
	fs.BoolVar(&o.Translate, "translate", o.Translate, "Treat shader bodies as WebGL2 and translate them")
	fs.IntVar(&o.RequestTimeout, "timeout", o.RequestTimeout, "HTTP request timeout in seconds")
	fs.StringVar(&o.Record.Output, "output", o.Record.Output, "Output file for record mode")
	fs.Float64Var(&o.Record.Duration, "duration", o.Record.Duration, "Duration in seconds for record mode")
	fs.IntVar(&o.Record.FPS, "rate", o.Record.FPS, "Frames per second for record mode")
	fs.StringVar(&o.Record.FFmpeg, "ffmpeg", o.Record.FFmpeg, "Path to the ffmpeg binary")
}

// Validate reports the first invalid setting.
func (o *Options) Validate() error {
	switch o.PointerButton {
	case ButtonRight, ButtonLeft, ButtonAny, ButtonNone:
	default:
		return fmt.Errorf("invalid pointer button %q", o.PointerButton)
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", o.Width, o.Height)
	}
	if o.Record.FPS <= 0 {
		return fmt.Errorf("record fps must be positive, got %d", o.Record.FPS)
	}
	if o.Record.Duration <= 0 {
		return fmt.Errorf("record duration must be positive, got %g", o.Record.Duration)
	}
	return nil
}

// Timeout returns the HTTP request timeout.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.RequestTimeout) * time.Second
}

// DefaultPath returns the OS-specific location of the config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigDir determines the OS-specific configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("HOME environment variable not set")
		}
		base = filepath.Join(home, "Library", "Application Support")
	default: // linux, bsd, etc.
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home := os.Getenv("HOME")
			if home == "" {
				return "", fmt.Errorf("HOME environment variable not set")
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appName), nil
}

// DataDir determines the OS-specific directory for the shader database.
func DataDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			return "", fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("HOME environment variable not set")
		}
		base = filepath.Join(home, "Library", "Application Support")
	default: // linux, bsd, etc.
		base = os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home := os.Getenv("HOME")
			if home == "" {
				return "", fmt.Errorf("HOME environment variable not set")
			}
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, appName), nil
}
