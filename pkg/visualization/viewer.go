// Package visualization assembles canvases into a viewer which renders
// frames, takes screenshots and exports reference slices.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/canvas"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/config"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

// flushCycles bounds the idle cycles run before each frame.
const flushCycles = 32

// ErrUnknownCanvas is returned when a canvas name is not in the layout.
var ErrUnknownCanvas = errors.New("unknown canvas")

// Canvas is implemented by every canvas type.
type Canvas interface {
	Name() string
	Size() (width, height int)
	ZAx() int
	Initialise(width, height int) error
	Draw() error
	Destroy()
	Annotations() *annotations.Annotations
	Failed(ov models.Overlay) error
}

// Viewer owns the overlay list, the display context and the canvases of
// one layout, all drawing with a single backend.
type Viewer struct {
	cfg      *config.Config
	env      canvas.Env
	overlays *models.OverlayList

	// canvases are keyed by layout name: "X", "Y" and "Z" for the
	// orthographic slices, "lightbox" and "3d".
	canvases map[string]Canvas
	order    []string
}

// NewViewer creates the canvases selected by cfg.Canvas.Layout. The
// backend must be usable by the calling goroutine.
func NewViewer(b gl.Backend, cfg *config.Config) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	probe := texdata.BackendProbe(b)
	if ft := cfg.Render.FloatTextures; ft != nil {
		on := *ft
		probe = texdata.NewFloatProbe(func(int) bool { return on })
	}
	list := models.NewOverlayList()
	v := &Viewer{
		cfg:      cfg,
		overlays: list,
		canvases: map[string]Canvas{},
		env: canvas.Env{
			Backend:  b,
			Registry: resources.NewRegistry(),
			Queue:    idle.NewQueue(),
			Probe:    probe,
			Context:  models.NewDisplayContext(list, nil),
		},
	}
	if err := v.build(); err != nil {
		v.Close()
		return nil, err
	}
	for _, name := range v.order {
		if err := v.canvases[name].Initialise(cfg.Render.Width, cfg.Render.Height); err != nil {
			v.Close()
			return nil, fmt.Errorf("initialising canvas %s: %w", name, err)
		}
	}
	logx.Logger().Info("viewer created", "layout", cfg.Canvas.Layout, "canvases", v.order,
		"width", cfg.Render.Width, "height", cfg.Render.Height, "mode", cfg.Render.Mode)
	return v, nil
}

func (v *Viewer) add(name string, c Canvas) {
	v.canvases[name] = c
	v.order = append(v.order, name)
}

func (v *Viewer) build() error {
	cfg := v.cfg
	switch cfg.Canvas.Layout {
	case config.LayoutOrtho:
		for zax, name := range annotations.CanvasNames {
			c, err := canvas.NewSliceCanvas(v.env, zax, cfg.CanvasOptions())
			if err != nil {
				return err
			}
			c.SetZoom(cfg.Canvas.Zoom)
			v.add(name, c)
		}
	case config.LayoutLightBox:
		c, err := canvas.NewLightBoxCanvas(v.env, cfg.Canvas.ZAxis, cfg.CanvasOptions(), cfg.LightBoxOptions())
		if err != nil {
			return err
		}
		v.add(config.LayoutLightBox, c)
	case config.Layout3D:
		v.add(config.Layout3D, canvas.NewScene3DCanvas(v.env, cfg.Scene3DOptions()))
	}
	return nil
}

// Context returns the display context shared by the canvases.
func (v *Viewer) Context() *models.DisplayContext { return v.env.Context }

// Registry returns the resource registry shared by the canvases.
func (v *Viewer) Registry() *resources.Registry { return v.env.Registry }

// Names returns the canvas names in drawing order.
func (v *Viewer) Names() []string { return append([]string(nil), v.order...) }

// Canvas returns the named canvas.
func (v *Viewer) Canvas(name string) (Canvas, error) {
	c, ok := v.canvases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownCanvas, name, v.order)
	}
	return c, nil
}

// AddOverlay appends ov to the overlay list. The first overlay added moves
// the location to the centre of the display bounds.
func (v *Viewer) AddOverlay(ov models.Overlay) {
	first := v.overlays.Len() == 0
	v.overlays.Append(ov)
	if first {
		v.env.Context.SetLocation(v.env.Context.Bounds().Centre())
	}
	logx.Logger().Debug("overlay added", "overlay", ov.Name(), "count", v.overlays.Len())
}

// Frame runs pending idle tasks and draws every canvas. Canvas failures
// are joined; the remaining canvases are still drawn.
func (v *Viewer) Frame() error {
	v.env.Queue.Flush(flushCycles)
	var errs []error
	for _, name := range v.order {
		if err := v.canvases[name].Draw(); err != nil {
			errs = append(errs, fmt.Errorf("canvas %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Screenshot draws the named canvas and reads it back. If width and
// height differ from the canvas size the image is rescaled.
func (v *Viewer) Screenshot(name string, width, height int) (image.Image, error) {
	c, err := v.Canvas(name)
	if err != nil {
		return nil, err
	}
	v.env.Queue.Flush(flushCycles)
	if err := c.Draw(); err != nil {
		return nil, fmt.Errorf("canvas %s: %w", name, err)
	}
	w, h := c.Size()
	img, err := v.env.Backend.ReadPixels(0, 0, w, h)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || (width == w && height == h) {
		return img, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return scaled, nil
}

// SaveScreenshot writes the named canvas to path, as JPEG for .jpg and
// .jpeg files and PNG otherwise.
func (v *Viewer) SaveScreenshot(name, path string) error {
	img, err := v.Screenshot(name, 0, 0)
	if err != nil {
		return err
	}
	if err := SaveImage(img, path); err != nil {
		return err
	}
	logx.Logger().Info("screenshot saved", "canvas", name, "path", path)
	return nil
}

// SaveImage encodes img to path, as JPEG for .jpg and .jpeg files and
// PNG otherwise.
func SaveImage(img image.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	return errors.Join(err, file.Close())
}

// LoadAnnotations adds the annotations in r to the canvases they were
// saved from. Annotations for canvases which are not in the layout are
// dropped; a lightbox canvas receives those of its depth axis.
func (v *Viewer) LoadAnnotations(r io.Reader) (int, error) {
	objs, err := annotations.Load(r)
	if err != nil {
		return 0, err
	}
	n := 0
	for cname, list := range objs {
		c, ok := v.annotationCanvas(cname)
		if !ok {
			logx.Logger().Warn("dropping annotations", "canvas", cname, "count", len(list))
			continue
		}
		for _, obj := range list {
			c.Annotations().Enqueue(obj, true, false)
			n++
		}
	}
	return n, nil
}

func (v *Viewer) annotationCanvas(name string) (Canvas, bool) {
	if c, ok := v.canvases[name]; ok {
		return c, true
	}
	if c, ok := v.canvases[config.LayoutLightBox]; ok && annotations.CanvasNames[c.ZAx()] == name {
		return c, true
	}
	return nil, false
}

// SaveAnnotations writes the persistent annotations of the 2D canvases.
func (v *Viewer) SaveAnnotations(w io.Writer) error {
	byName := map[string]*annotations.Annotations{}
	for _, name := range v.order {
		if name == config.Layout3D {
			continue
		}
		c := v.canvases[name]
		byName[annotations.CanvasNames[c.ZAx()]] = c.Annotations()
	}
	return annotations.Save(w, byName)
}

// Label adds a text annotation in the top left corner of every canvas,
// using the annotation colour and font size of the configuration.
func (v *Viewer) Label(text string) {
	for _, name := range v.order {
		t := annotations.NewText(text, 0.02, 0.98, v.cfg.AnnotationColour())
		t.VAlign = "top"
		t.FontSize = v.cfg.Annotations.FontSize
		v.canvases[name].Annotations().Enqueue(t, true, false)
	}
}

// MarkLocation adds a point annotation at the current location to every
// 2D canvas, limited to the slice containing it.
func (v *Viewer) MarkLocation() {
	loc := v.env.Context.Location()
	for _, name := range v.order {
		if name == config.Layout3D {
			continue
		}
		c := v.canvases[name]
		xax, yax := routines.OtherAxes(c.ZAx())
		p := annotations.NewPoint(loc[xax], loc[yax], v.cfg.AnnotationColour())
		p.LineWidth = v.cfg.Annotations.LineWidth
		z := loc[c.ZAx()]
		p.SetZLimits(z-0.5, z+0.5)
		c.Annotations().Enqueue(p, true, false)
	}
}

// Close destroys every canvas.
func (v *Viewer) Close() {
	for _, name := range v.order {
		v.canvases[name].Destroy()
	}
	v.canvases = map[string]Canvas{}
	v.order = nil
}
