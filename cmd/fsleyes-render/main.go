// Command fsleyes-render renders images and surface meshes with the
// slice, lightbox or 3D canvases in a hidden window and writes a
// screenshot of every canvas.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/config"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl/opengl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/stl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/visualization"
)

func init() {
	// GL calls must come from the thread which owns the context
	runtime.LockOSThread()
}

type options struct {
	configPath    string
	initConfig    bool
	slicesDir     string
	sliceGap      float64
	meshes        string
	isoLevel      float64
	saveMesh      string
	layout        string
	mode          string
	outputDir     string
	format        string
	annotations   string
	saveAnnots    string
	label         string
	mark          bool
	extractSlices bool
	extractDir    string
	verbose       bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "fsleyes-render.yaml", "YAML configuration file")
	flag.BoolVar(&o.initConfig, "init-config", false, "Write a default configuration file to -config and exit")
	flag.StringVar(&o.slicesDir, "slices", "", "Directory containing 2D image slices, loaded as one volume")
	flag.Float64Var(&o.sliceGap, "gap", 1.0, "Inter-slice gap in mm")
	flag.StringVar(&o.meshes, "mesh", "", "Comma separated STL files to display")
	flag.Float64Var(&o.isoLevel, "isosurface", 0, "Extract a surface mesh from the volume at this level (0 disables)")
	flag.StringVar(&o.saveMesh, "save-mesh", "", "Write the extracted surface to this STL file")
	flag.StringVar(&o.layout, "layout", "", "Canvas layout: ortho, lightbox or 3d (overrides config)")
	flag.StringVar(&o.mode, "mode", "", "Render mode: onscreen, offscreen or prerender (overrides config)")
	flag.StringVar(&o.outputDir, "output", "screenshots", "Directory to save screenshots")
	flag.StringVar(&o.format, "format", "png", "Screenshot format: png or jpg")
	flag.StringVar(&o.annotations, "annotations", "", "Annotation file to load (overrides config)")
	flag.StringVar(&o.saveAnnots, "save-annotations", "", "Write the canvas annotations to this file")
	flag.StringVar(&o.label, "label", "", "Text drawn in the corner of every canvas")
	flag.BoolVar(&o.mark, "mark", false, "Mark the cursor location on the 2D canvases")
	flag.BoolVar(&o.extractSlices, "extract-slices", false, "Save the volume slices along all axes")
	flag.StringVar(&o.extractDir, "slices-dir", "extracted_slices", "Directory to save extracted slices")
	flag.BoolVar(&o.verbose, "verbose", false, "Log at debug level")
	flag.Parse()

	if err := run(o); err != nil {
		logx.Logger().Error("fsleyes-render failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(o options) (*config.Config, error) {
	if o.initConfig {
		if err := config.CreateDefaultConfigFile(o.configPath); err != nil {
			return nil, err
		}
		fmt.Printf("Default configuration written to %s\n", o.configPath)
		return nil, nil
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.layout != "" {
		cfg.Canvas.Layout = o.layout
	}
	if o.mode != "" {
		cfg.Render.Mode = o.mode
	}
	if o.annotations != "" {
		cfg.Annotations.File = o.annotations
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil || cfg == nil {
		return err
	}
	logx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	if o.slicesDir == "" && o.meshes == "" {
		flag.Usage()
		return fmt.Errorf("nothing to render: pass -slices or -mesh")
	}
	switch o.format {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("unknown screenshot format %q", o.format)
	}

	overlays, err := loadOverlays(o)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := render(o, cfg, overlays); err != nil {
		return err
	}
	logx.Logger().Info("rendering finished", "elapsed", time.Since(start))
	return nil
}

// loadOverlays reads the volume and meshes, extracting a surface and
// reference slices from the volume when asked to.
func loadOverlays(o options) ([]models.Overlay, error) {
	var overlays []models.Overlay
	if o.slicesDir != "" {
		img, err := visualization.LoadSlices(o.slicesDir, [3]float64{1, 1, o.sliceGap})
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, img)

		if o.extractSlices {
			for axis, name := range []string{"x", "y", "z"} {
				dir := filepath.Join(o.extractDir, name)
				if err := visualization.SaveSliceSequence(img, axis, 0, dir); err != nil {
					logx.Logger().Warn("slice extraction failed", "axis", name, "error", err)
				}
			}
		}

		if o.isoLevel > 0 {
			mesh, err := stl.IsosurfaceMesh(img, 0, o.isoLevel)
			if err != nil {
				return nil, err
			}
			logx.Logger().Info("surface extracted", "level", o.isoLevel,
				"vertices", len(mesh.Vertices), "triangles", len(mesh.Indices))
			if o.saveMesh != "" {
				if err := stl.Save(o.saveMesh, mesh); err != nil {
					return nil, err
				}
			}
			overlays = append(overlays, mesh)
		}
	}
	for _, path := range strings.Split(o.meshes, ",") {
		if path = strings.TrimSpace(path); path == "" {
			continue
		}
		mesh, err := stl.Load(path)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, mesh)
	}
	return overlays, nil
}

// newContext creates a hidden window whose OpenGL 2.1 context is current
// on the calling thread.
func newContext(width, height int) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw: %w", err)
	}
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	win, err := glfw.CreateWindow(width, height, "fsleyes-render", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glfw: %w", err)
	}
	win.MakeContextCurrent()
	return win, nil
}

func render(o options, cfg *config.Config, overlays []models.Overlay) error {
	win, err := newContext(cfg.Render.Width, cfg.Render.Height)
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer win.Destroy()

	backend, err := opengl.New()
	if err != nil {
		return err
	}
	viewer, err := visualization.NewViewer(backend, cfg)
	if err != nil {
		return err
	}
	defer viewer.Close()

	for _, ov := range overlays {
		viewer.AddOverlay(ov)
	}
	if cfg.Annotations.File != "" {
		f, err := os.Open(cfg.Annotations.File)
		if err != nil {
			return err
		}
		n, err := viewer.LoadAnnotations(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Annotations.File, err)
		}
		logx.Logger().Info("annotations loaded", "path", cfg.Annotations.File, "count", n)
	}
	if o.mark {
		viewer.MarkLocation()
	}
	if o.label != "" {
		viewer.Label(o.label)
	}

	if err := viewer.Frame(); err != nil {
		logx.Logger().Warn("frame drawn with errors", "error", err)
	}
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return err
	}
	for _, name := range viewer.Names() {
		path := filepath.Join(o.outputDir, fmt.Sprintf("%s.%s", strings.ToLower(name), o.format))
		if err := viewer.SaveScreenshot(name, path); err != nil {
			return err
		}
		fmt.Printf("Saved %s canvas to %s\n", name, path)
	}

	if o.saveAnnots != "" {
		f, err := os.Create(o.saveAnnots)
		if err != nil {
			return err
		}
		if err := viewer.SaveAnnotations(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
