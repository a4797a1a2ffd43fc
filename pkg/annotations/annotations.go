// Package annotations implements the per-canvas queue of simple shapes
// and text drawn on top of the overlays: points, lines, arrows,
// rectangles, ellipses, voxel selections and text.
//
// Every canvas has three queues. Transient annotations are drawn once and
// discarded after the next draw. Fixed annotations are held until they
// are dequeued, and are used internally (for example for the cursor).
// Persistent annotations are held until dequeued and are listed by
// Annotations. The queues are drawn in the order fixed, persistent,
// transient.
package annotations

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/shaders"
)

// AnnotationsProp is notified whenever the persistent queue changes.
const AnnotationsProp = "annotations"

// DrawError wraps a failure raised while drawing one annotation. The
// annotation is skipped for that frame; the others are still drawn.
type DrawError struct {
	Kind Kind
	Err  error
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("drawing %s annotation: %v", e.Kind, e.Err)
}

func (e *DrawError) Unwrap() error { return e.Err }

// Annotations is the annotation queue of one canvas.
type Annotations struct {
	backend gl.Backend
	n       props.Notifier
	zax     int

	flat *gl.Program
	tex  *gl.Program
	sel  *gl.Program

	transient  []Object
	fixed      []Object
	persistent []Object

	projection mgl32.Mat4
	modelView  mgl32.Mat4
	width      int
	height     int
	pixelSize  float64

	// Now returns the current time, for expiry checks.
	Now func() time.Time
}

// New creates an empty annotation queue for a canvas whose depth axis is
// zax.
func New(b gl.Backend, zax int) (*Annotations, error) {
	a := &Annotations{
		backend:    b,
		zax:        zax,
		projection: mgl32.Ident4(),
		modelView:  mgl32.Ident4(),
		width:      1,
		height:     1,
		pixelSize:  1,
		Now:        time.Now,
	}
	var err error
	if a.flat, err = compile(b, "flat"); err == nil {
		if a.tex, err = compile(b, "texture"); err == nil {
			a.sel, err = compile(b, "selection")
		}
	}
	if err != nil {
		a.Destroy()
		return nil, fmt.Errorf("annotations: %w", err)
	}
	return a, nil
}

func compile(b gl.Backend, name string) (*gl.Program, error) {
	vert, frag, err := shaders.Load(name)
	if err != nil {
		return nil, err
	}
	return gl.NewProgram(b, "annotations_"+name, vert, frag)
}

// Notifier returns the notifier for AnnotationsProp.
func (a *Annotations) Notifier() *props.Notifier { return &a.n }

// ZAx returns the depth axis of the canvas.
func (a *Annotations) ZAx() int { return a.zax }

// SetZAx changes the depth axis of the canvas.
func (a *Annotations) SetZAx(zax int) { a.zax = zax }

// SetView sets the canvas matrices, its size in pixels and the size of
// one pixel in display units.
func (a *Annotations) SetView(proj, mv mgl32.Mat4, width, height int, pixelSize float64) {
	a.projection, a.modelView = proj, mv
	a.width, a.height = max(width, 1), max(height, 1)
	a.pixelSize = pixelSize
}

// Enqueue adds obj to the transient queue, or to the persistent queue if
// hold is set, or to the fixed queue if hold and fixed are both set. The
// creation time is set if it is zero.
func (a *Annotations) Enqueue(obj Object, hold, fixed bool) {
	b := obj.Attrs()
	if b.Created.IsZero() {
		b.Created = a.Now()
	}
	switch {
	case !hold:
		a.transient = append(a.transient, obj)
	case fixed:
		a.fixed = append(a.fixed, obj)
	default:
		a.persistent = append(a.persistent, obj)
		a.n.Notify(AnnotationsProp)
	}
}

// Dequeue removes obj from the queue selected by hold and fixed, and
// reports whether it was there.
func (a *Annotations) Dequeue(obj Object, hold, fixed bool) bool {
	q := &a.transient
	if hold && fixed {
		q = &a.fixed
	} else if hold {
		q = &a.persistent
	}
	i := slices.Index(*q, obj)
	if i < 0 {
		return false
	}
	*q = slices.Delete(*q, i, i+1)
	if q == &a.persistent {
		a.n.Notify(AnnotationsProp)
	}
	return true
}

// Annotations returns a copy of the persistent queue.
func (a *Annotations) Annotations() []Object { return slices.Clone(a.persistent) }

// Len returns the lengths of the transient, fixed and persistent queues.
func (a *Annotations) Len() (transient, fixed, persistent int) {
	return len(a.transient), len(a.fixed), len(a.persistent)
}

// Clear empties the transient and persistent queues. Fixed annotations
// are kept.
func (a *Annotations) Clear() {
	a.transient = nil
	if len(a.persistent) > 0 {
		a.persistent = nil
		a.n.Notify(AnnotationsProp)
	}
}

// Draw2D draws every visible annotation on a 2D canvas showing the slice
// at depth zpos, then clears the transient queue. Failures of individual
// annotations are logged and returned; they do not stop the others.
func (a *Annotations) Draw2D(zpos float64) []error {
	return a.draw(zpos, true)
}

// Draw3D draws every visible annotation on a 3D canvas, then clears the
// transient queue. Z limits are not applied.
func (a *Annotations) Draw3D() []error {
	return a.draw(0, false)
}

func (a *Annotations) draw(zpos float64, twoD bool) []error {
	now := a.Now()
	queue := make([]Object, 0, len(a.fixed)+len(a.persistent)+len(a.transient))
	queue = append(queue, a.fixed...)
	queue = append(queue, a.persistent...)
	queue = append(queue, a.transient...)
	a.transient = nil

	a.backend.Enable(gl.Blend)
	defer a.backend.Disable(gl.Blend)

	var errs []error
	for _, obj := range queue {
		if !obj.Attrs().visible(now, zpos, twoD) {
			continue
		}
		if err := a.drawObject(obj, zpos); err != nil {
			logx.Logger().Warn("annotation draw failed", "kind", string(obj.Kind()), "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

func (a *Annotations) drawObject(obj Object, zpos float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DrawError{Kind: obj.Kind(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := obj.draw(a.context(obj.Attrs(), zpos)); err != nil {
		var de *DrawError
		if errors.As(err, &de) {
			return err
		}
		return &DrawError{Kind: obj.Kind(), Err: err}
	}
	return nil
}

// drawContext is the coordinate system an annotation is drawn in.
type drawContext struct {
	a     *Annotations
	axes  [3]int
	zpos  float64
	mvp   mgl32.Mat4
	pixel [2]float64
}

// context returns the coordinate system for b: display coordinates on the
// canvas axes, or canvas proportions in [0, 1] when b does not apply the
// canvas transform.
func (a *Annotations) context(b *Base, zpos float64) *drawContext {
	if b.ApplyMVP {
		xax, yax := routines.OtherAxes(a.zax)
		return &drawContext{
			a:     a,
			axes:  [3]int{xax, yax, a.zax},
			zpos:  zpos,
			mvp:   a.projection.Mul4(a.modelView),
			pixel: [2]float64{a.pixelSize, a.pixelSize},
		}
	}
	return a.proportions()
}

func (a *Annotations) proportions() *drawContext {
	return &drawContext{
		a:     a,
		axes:  [3]int{0, 1, 2},
		mvp:   mgl32.Ortho(0, 1, 0, 1, -1, 1),
		pixel: [2]float64{1 / float64(a.width), 1 / float64(a.height)},
	}
}

func (a *Annotations) pixels() *drawContext {
	return &drawContext{
		a:     a,
		axes:  [3]int{0, 1, 2},
		mvp:   mgl32.Ortho(0, float32(a.width), 0, float32(a.height), -1, 1),
		pixel: [2]float64{1, 1},
	}
}

// vertex places a 2D annotation coordinate on the canvas plane.
func (dc *drawContext) vertex(x, y float64) [3]float64 {
	var p [3]float64
	p[dc.axes[0]], p[dc.axes[1]], p[dc.axes[2]] = x, y, dc.zpos
	return p
}

func (dc *drawContext) vertices(pts [][2]float64) []float32 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		out[i] = dc.vertex(p[0], p[1])
	}
	return routines.Flatten(out)
}

// shape draws pts with the flat program in a single colour.
func (dc *drawContext) shape(prim gl.Primitive, colour mgl32.Vec4, pts [][2]float64) error {
	prog := dc.a.flat
	prog.Load()
	defer prog.Unload()
	err := prog.SetAll(map[string]any{
		"MVP":             dc.mvp,
		"colour":          colour,
		"useVertexColour": false,
	})
	if err != nil {
		return err
	}
	return dc.a.backend.Draw(prim, gl.VertexData{Vertices: dc.vertices(pts)})
}

// Destroy deletes the programs and empties every queue.
func (a *Annotations) Destroy() {
	a.transient, a.fixed, a.persistent = nil, nil, nil
	a.flat.Destroy()
	a.tex.Destroy()
	a.sel.Destroy()
}
