// Package config provides configuration loading and management for the
// renderer. It handles loading configuration from YAML files, provides
// default values and converts sections into canvas options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/canvas"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Canvas layouts.
const (
	LayoutOrtho    = "ortho"
	LayoutLightBox = "lightbox"
	Layout3D       = "3d"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Render parameters shared by every canvas
	Render struct {
		// Mode is the 2D render mode: onscreen, offscreen or prerender
		Mode string `yaml:"mode"`

		// Width and Height are the size of each canvas in pixels
		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Background is the canvas colour as #rrggbb
		Background string `yaml:"background"`

		// FloatTextures overrides detection of floating point texture
		// support when set
		FloatTextures *bool `yaml:"floatTextures,omitempty"`
	} `yaml:"render"`

	// Canvas parameters
	Canvas struct {
		// Layout selects the canvases: ortho, lightbox or 3d
		Layout string `yaml:"layout"`

		// ZAxis is the depth axis of a lightbox canvas
		ZAxis int `yaml:"zaxis"`

		// Zoom is a percentage; 100 fits the overlays to the canvas
		Zoom float64 `yaml:"zoom"`

		ShowCursor   bool   `yaml:"showCursor"`
		CursorColour string `yaml:"cursorColour"`
	} `yaml:"canvas"`

	// LightBox parameters
	LightBox struct {
		SliceSpacing  float64   `yaml:"sliceSpacing"`
		NCols         int       `yaml:"ncols"`
		ZRange        []float64 `yaml:"zrange,omitempty"`
		ShowGridLines bool      `yaml:"showGridLines"`
	} `yaml:"lightbox"`

	// Scene3D parameters
	Scene3D struct {
		Occlusion bool       `yaml:"occlusion"`
		Zoom      float64    `yaml:"zoom"`
		Azimuth   float64    `yaml:"azimuth"`
		Elevation float64    `yaml:"elevation"`
		LightPos  [3]float64 `yaml:"lightPos,flow"`
		NumSteps  int        `yaml:"numSteps"`
	} `yaml:"scene3d"`

	// Texture parameters
	Textures struct {
		// Resolution is the edge length of offscreen and prerendered
		// slice textures; zero uses the canvas size
		Resolution int `yaml:"resolution"`

		// Depth is the number of slices in prerendered texture stacks
		Depth int `yaml:"depth"`
	} `yaml:"textures"`

	// Annotation parameters
	Annotations struct {
		// File is an annotation file loaded onto the canvases
		File string `yaml:"file,omitempty"`

		Colour    string  `yaml:"colour"`
		LineWidth float64 `yaml:"lineWidth"`
		FontSize  float64 `yaml:"fontSize"`
	} `yaml:"annotations"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn or error
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Render.Mode = string(canvas.Onscreen)
	cfg.Render.Width = 512
	cfg.Render.Height = 512
	cfg.Render.Background = "#000000"

	cfg.Canvas.Layout = LayoutOrtho
	cfg.Canvas.ZAxis = 2
	cfg.Canvas.Zoom = 100
	cfg.Canvas.ShowCursor = true
	cfg.Canvas.CursorColour = "#00ff00"

	lb := canvas.DefaultLightBoxOptions()
	cfg.LightBox.SliceSpacing = lb.SliceSpacing
	cfg.LightBox.NCols = lb.NCols

	s3 := canvas.DefaultScene3DOptions()
	cfg.Scene3D.Occlusion = s3.Occlusion
	cfg.Scene3D.Zoom = s3.Zoom
	cfg.Scene3D.LightPos = s3.LightPos
	cfg.Scene3D.NumSteps = s3.NumSteps

	cfg.Textures.Depth = textures.DefaultStackDepth

	cfg.Annotations.Colour = "#ff0000"
	cfg.Annotations.LineWidth = 1
	cfg.Annotations.FontSize = 10

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every section for values which no canvas accepts.
func (c *Config) Validate() error {
	var errs []error
	if _, err := canvas.ParseRenderMode(c.Render.Mode); err != nil {
		errs = append(errs, invalid("render.mode: %v", err))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, invalid("render size %dx%d", c.Render.Width, c.Render.Height))
	}
	switch c.Canvas.Layout {
	case LayoutOrtho, LayoutLightBox, Layout3D:
	default:
		errs = append(errs, invalid("canvas.layout %q", c.Canvas.Layout))
	}
	if c.Canvas.ZAxis < 0 || c.Canvas.ZAxis > 2 {
		errs = append(errs, invalid("canvas.zaxis %d", c.Canvas.ZAxis))
	}
	if c.Canvas.Zoom <= 0 || c.Scene3D.Zoom <= 0 {
		errs = append(errs, invalid("zoom must be positive"))
	}
	if c.LightBox.SliceSpacing <= 0 {
		errs = append(errs, invalid("lightbox.sliceSpacing %g", c.LightBox.SliceSpacing))
	}
	if c.LightBox.NCols < 1 {
		errs = append(errs, invalid("lightbox.ncols %d", c.LightBox.NCols))
	}
	if zr := c.LightBox.ZRange; len(zr) != 0 && (len(zr) != 2 || zr[0] >= zr[1]) {
		errs = append(errs, invalid("lightbox.zrange %v", zr))
	}
	if c.Scene3D.NumSteps < 1 {
		errs = append(errs, invalid("scene3d.numSteps %d", c.Scene3D.NumSteps))
	}
	if c.Textures.Resolution < 0 || c.Textures.Depth < 1 {
		errs = append(errs, invalid("textures resolution %d depth %d", c.Textures.Resolution, c.Textures.Depth))
	}
	for key, s := range map[string]string{
		"render.background":   c.Render.Background,
		"canvas.cursorColour": c.Canvas.CursorColour,
		"annotations.colour":  c.Annotations.Colour,
	} {
		if _, err := annotations.ParseColour(s); err != nil {
			errs = append(errs, invalid("%s: %v", key, err))
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, invalid("logging.level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// LogLevel returns the slog level named by the logging section.
func (c *Config) LogLevel() slog.Level { return logx.ParseLevel(c.Logging.Level) }

func colour(s string) models.Colour {
	c, err := annotations.ParseColour(s)
	if err != nil {
		return models.RGB(0, 0, 0)
	}
	return c
}

// BackgroundColour returns the render background as RGBA.
func (c *Config) BackgroundColour() [4]float32 {
	bg := colour(c.Render.Background)
	return [4]float32{float32(bg[0]), float32(bg[1]), float32(bg[2]), 1}
}

// AnnotationColour returns the default annotation colour.
func (c *Config) AnnotationColour() models.Colour { return colour(c.Annotations.Colour) }

// CanvasOptions returns the options of a 2D canvas.
func (c *Config) CanvasOptions() canvas.Options {
	opts := canvas.DefaultOptions()
	opts.RenderMode = canvas.RenderMode(c.Render.Mode)
	opts.Background = c.BackgroundColour()
	opts.TextureSize = c.Textures.Resolution
	opts.StackDepth = c.Textures.Depth
	opts.ShowCursor = c.Canvas.ShowCursor
	opts.CursorColour = colour(c.Canvas.CursorColour)
	return opts
}

// LightBoxOptions returns the slice grid of a lightbox canvas.
func (c *Config) LightBoxOptions() canvas.LightBoxOptions {
	lb := canvas.LightBoxOptions{
		SliceSpacing:  c.LightBox.SliceSpacing,
		NCols:         c.LightBox.NCols,
		ShowGridLines: c.LightBox.ShowGridLines,
	}
	if len(c.LightBox.ZRange) == 2 {
		lb.ZRange = &[2]float64{c.LightBox.ZRange[0], c.LightBox.ZRange[1]}
	}
	return lb
}

// Scene3DOptions returns the camera and compositing options of a 3D
// canvas.
func (c *Config) Scene3DOptions() canvas.Scene3DOptions {
	opts := canvas.DefaultScene3DOptions()
	opts.Background = c.BackgroundColour()
	opts.Occlusion = c.Scene3D.Occlusion
	opts.Zoom = c.Scene3D.Zoom
	opts.Azimuth = c.Scene3D.Azimuth
	opts.Elevation = c.Scene3D.Elevation
	opts.LightPos = c.Scene3D.LightPos
	opts.NumSteps = c.Scene3D.NumSteps
	opts.ShowCursor = c.Canvas.ShowCursor
	opts.CursorColour = colour(c.Canvas.CursorColour)
	return opts
}
