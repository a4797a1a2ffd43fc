// Package canvas implements the canvases which draw the overlay list: the
// orthographic slice canvas, the lightbox mosaic and the 3D scene.
//
// A canvas owns one GLObject per overlay. GLObjects are created on the
// idle queue once the canvas has a GL context, recreated when the overlay
// type of an overlay changes and destroyed when the overlay is removed.
// Annotations are drawn on top of the overlays.
package canvas

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

// RefreshProp is notified whenever the canvas needs to be redrawn.
const RefreshProp = "refresh"

// State is the lifecycle state of a canvas.
type State int

const (
	// Uninitialised canvases have no GL context. GLObject creation is
	// deferred until Initialise is called.
	Uninitialised State = iota
	Ready
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Ready:
		return "ready"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

var (
	// ErrNotReady is returned when drawing a canvas before Initialise.
	ErrNotReady = errors.New("canvas is not initialised")
	// ErrDestroyed is returned when using a destroyed canvas.
	ErrDestroyed = errors.New("canvas has been destroyed")
)

// Env holds the application-wide state shared by canvases.
type Env struct {
	Backend  gl.Backend
	Registry *resources.Registry
	Queue    *idle.Queue
	Probe    *texdata.FloatProbe
	Context  *models.DisplayContext
}

var lastCanvas atomic.Uint64

// canvas holds the state shared by every canvas type.
type canvas struct {
	id       uint64
	kind     string
	name     string
	listener string
	state    State
	n        props.Notifier

	env    *globject.Env
	width  int
	height int
	bg     [4]float32

	objects  map[uint64]globject.GLObject
	failed   map[uint64]error
	displays map[uint64]*models.Display

	annot *annotations.Annotations
	zax   int

	// Hooks for the concrete canvas types.
	objectAdded   func(obj globject.GLObject)
	objectRemoved func(obj globject.GLObject)
	objectUpdated func(obj globject.GLObject)
}

func newCanvas(kind string, env Env, zax int, bg [4]float32) *canvas {
	id := lastCanvas.Add(1)
	c := &canvas{
		id:       id,
		kind:     kind,
		name:     fmt.Sprintf("%s_%d", kind, id),
		listener: fmt.Sprintf("canvas_%d", id),
		env: &globject.Env{
			Backend:  env.Backend,
			Registry: env.Registry,
			Queue:    env.Queue,
			Probe:    env.Probe,
			Context:  env.Context,
			View:     globject.NewView(),
			CanvasID: id,
		},
		width:    1,
		height:   1,
		bg:       bg,
		zax:      zax,
		objects:  map[uint64]globject.GLObject{},
		failed:   map[uint64]error{},
		displays: map[uint64]*models.Display{},
	}
	ctx := env.Context
	ctx.Overlays().Notifier().Listen(c.listener, models.OverlaysProp, func(string) { c.syncOverlays() })
	ctx.Notifier().Listen(c.listener, models.LocationProp, func(string) { c.refresh() })
	ctx.Notifier().Listen(c.listener, models.BoundsProp, func(string) { c.refresh() })
	c.syncOverlays()
	return c
}

// ID returns the unique canvas identifier.
func (c *canvas) ID() uint64 { return c.id }

// Name returns the canvas name, used in logs.
func (c *canvas) Name() string { return c.name }

// State returns the lifecycle state.
func (c *canvas) State() State { return c.state }

// Notifier fires RefreshProp when the canvas should be redrawn.
func (c *canvas) Notifier() *props.Notifier { return &c.n }

// Context returns the display context the canvas draws.
func (c *canvas) Context() *models.DisplayContext { return c.env.Context }

// Annotations returns the annotation queue. It is nil until Initialise.
func (c *canvas) Annotations() *annotations.Annotations { return c.annot }

// View returns the camera state used for the last draw.
func (c *canvas) View() *globject.View { return c.env.View }

// Size returns the canvas size in pixels.
func (c *canvas) Size() (width, height int) { return c.width, c.height }

// ZAx returns the depth axis.
func (c *canvas) ZAx() int { return c.zax }

// Object returns the GLObject of ov, if it has been created.
func (c *canvas) Object(ov models.Overlay) (globject.GLObject, bool) {
	obj, ok := c.objects[ov.ID()]
	return obj, ok
}

// Pending reports whether creation of the GLObject of ov is queued.
func (c *canvas) Pending(ov models.Overlay) bool {
	return c.env.Queue.Queued(c.createTask(ov))
}

// Failed returns the error which prevented a GLObject being created for
// ov, or nil. Such overlays are not drawn.
func (c *canvas) Failed(ov models.Overlay) error { return c.failed[ov.ID()] }

// initialise moves the canvas into the ready state, creating the
// resources which need a GL context.
func (c *canvas) initialise(width, height int) error {
	switch c.state {
	case Destroyed:
		return ErrDestroyed
	case Ready:
		c.resize(width, height)
		return nil
	}
	annot, err := annotations.New(c.env.Backend, c.zax)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.annot = annot
	c.resize(width, height)
	c.state = Ready
	logx.Logger().Info("canvas ready", "canvas", c.name, "width", c.width, "height", c.height)
	c.refresh()
	return nil
}

func (c *canvas) resize(width, height int) {
	c.width, c.height = max(width, 1), max(height, 1)
}

func (c *canvas) check() error {
	switch c.state {
	case Uninitialised:
		return ErrNotReady
	case Destroyed:
		return ErrDestroyed
	}
	return nil
}

func (c *canvas) refresh() {
	if c.state != Destroyed {
		c.n.Notify(RefreshProp)
	}
}

func (c *canvas) createTask(ov models.Overlay) string {
	return fmt.Sprintf("%s_create_%d", c.name, ov.ID())
}

// syncOverlays brings the GLObjects in line with the overlay list.
func (c *canvas) syncOverlays() {
	if c.state == Destroyed {
		return
	}
	ctx := c.env.Context
	live := map[uint64]models.Overlay{}
	for _, ov := range ctx.Overlays().All() {
		live[ov.ID()] = ov
	}
	for id, obj := range c.objects {
		if _, ok := live[id]; !ok {
			c.removeObject(obj)
		}
	}
	for id, d := range c.displays {
		if _, ok := live[id]; !ok {
			d.Notifier().RemoveAll(c.listener)
			delete(c.displays, id)
			delete(c.failed, id)
		}
	}
	for _, ov := range ctx.Overlays().All() {
		id := ov.ID()
		if _, ok := c.displays[id]; !ok {
			d := ctx.Display(ov)
			c.displays[id] = d
			d.Notifier().Listen(c.listener, models.OverlayTypeProp, func(string) { c.retype(ov) })
			d.Notifier().Listen(c.listener, models.EnabledProp, func(string) { c.refresh() })
		}
		if _, ok := c.objects[id]; ok {
			continue
		}
		if _, ok := c.failed[id]; ok {
			continue
		}
		c.queueCreate(ov)
	}
	c.refresh()
}

// queueCreate defers creation of the GLObject of ov until the canvas is
// ready. Creation is abandoned if the canvas is destroyed, or ov removed,
// in the meantime.
func (c *canvas) queueCreate(ov models.Overlay) {
	c.env.Queue.Add(idle.Task{
		Name:         c.createTask(ov),
		Func:         func() { c.create(ov) },
		When:         func() bool { return c.state == Ready },
		Skip:         func() bool { return c.state == Destroyed },
		DropIfQueued: true,
	})
}

func (c *canvas) create(ov models.Overlay) {
	if c.state != Ready {
		return
	}
	if !c.env.Context.Overlays().Contains(ov) {
		logx.Logger().Debug("overlay removed before its GLObject was created", "canvas", c.name, "overlay", ov.Name())
		return
	}
	if _, ok := c.objects[ov.ID()]; ok {
		return
	}
	obj, err := globject.New(c.env, ov)
	if err != nil {
		c.failed[ov.ID()] = err
		logx.Logger().Warn("cannot display overlay", "canvas", c.name, "overlay", ov.Name(), "error", err)
		c.refresh()
		return
	}
	c.objects[ov.ID()] = obj
	obj.Notifier().Listen(c.listener, globject.UpdatedProp, func(string) {
		if c.objectUpdated != nil {
			c.objectUpdated(obj)
		}
		c.refresh()
	})
	if c.objectAdded != nil {
		c.objectAdded(obj)
	}
	c.refresh()
}

func (c *canvas) removeObject(obj globject.GLObject) {
	ov := obj.Overlay()
	obj.Notifier().RemoveAll(c.listener)
	if c.objectRemoved != nil {
		c.objectRemoved(obj)
	}
	obj.Destroy()
	delete(c.objects, ov.ID())
}

// retype replaces the GLObject of ov after its overlay type changes.
func (c *canvas) retype(ov models.Overlay) {
	if c.state == Destroyed || !c.env.Context.Overlays().Contains(ov) {
		return
	}
	if obj, ok := c.objects[ov.ID()]; ok {
		c.removeObject(obj)
	}
	delete(c.failed, ov.ID())
	c.queueCreate(ov)
	c.refresh()
}

// drawable returns the GLObjects which can be drawn now, in overlay list
// order.
func (c *canvas) drawable() []globject.GLObject {
	ctx := c.env.Context
	var out []globject.GLObject
	for _, ov := range ctx.Overlays().All() {
		obj, ok := c.objects[ov.ID()]
		if !ok || !ctx.Display(ov).Enabled.Get() || !obj.Ready() {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// displayBounds returns the display context bounds, or a unit box around
// the origin when there is nothing to display.
func (c *canvas) displayBounds() models.Bounds {
	b := c.env.Context.Bounds()
	if b.Empty() {
		return models.Bounds{Lo: [3]float64{-0.5, -0.5, -0.5}, Hi: [3]float64{0.5, 0.5, 0.5}}
	}
	return b
}

func (c *canvas) clear() {
	b := c.env.Backend
	b.BindFramebuffer(0)
	b.Viewport(0, 0, c.width, c.height)
	b.Clear(gl.ClearColour|gl.ClearDepth|gl.ClearStencil, c.bg)
}

// destroy releases every GLObject, queued task and listener.
func (c *canvas) destroy() {
	if c.state == Destroyed {
		return
	}
	ctx := c.env.Context
	for _, ov := range ctx.Overlays().All() {
		c.env.Queue.Cancel(c.createTask(ov))
	}
	for _, obj := range c.objects {
		c.removeObject(obj)
	}
	for _, d := range c.displays {
		d.Notifier().RemoveAll(c.listener)
	}
	c.displays = map[uint64]*models.Display{}
	ctx.Overlays().Notifier().RemoveAll(c.listener)
	ctx.Notifier().RemoveAll(c.listener)
	if c.annot != nil {
		c.annot.Destroy()
	}
	c.state = Destroyed
	logx.Logger().Info("canvas destroyed", "canvas", c.name)
}
