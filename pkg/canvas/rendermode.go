package canvas

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// RenderMode selects how 2D canvases draw their GLObjects.
type RenderMode string

const (
	// Onscreen draws every GLObject into the canvas on every frame.
	Onscreen RenderMode = "onscreen"
	// Offscreen draws each GLObject into its own texture when it
	// changes, and draws the textures onto the canvas on every frame.
	Offscreen RenderMode = "offscreen"
	// Prerender draws each GLObject into a stack of slice textures,
	// shared between canvases, and draws the slice nearest to the
	// current depth on every frame.
	Prerender RenderMode = "prerender"
)

// ErrUnknownRenderMode is returned for render modes other than Onscreen,
// Offscreen and Prerender.
var ErrUnknownRenderMode = errors.New("unknown render mode")

// ParseRenderMode validates a render mode name.
func ParseRenderMode(s string) (RenderMode, error) {
	switch m := RenderMode(s); m {
	case Onscreen, Offscreen, Prerender:
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRenderMode, s)
}

// slice is one cross-section drawn on a 2D canvas: the overlay at depth
// zpos, moved by xform when it is not nil.
type slice struct {
	zpos  float64
	xform *mgl32.Mat4
}

// frame describes what a 2D canvas draws for each overlay in one frame.
type frame struct {
	axes   globject.Axes
	slices []slice

	// lo and hi bound every slice after its xform has been applied.
	lo, hi [3]float64

	mvp mgl32.Mat4
}

// renderer is a render mode strategy.
type renderer interface {
	mode() RenderMode
	draw(obj globject.GLObject, f *frame) error

	// invalidate discards anything cached for obj.
	invalidate(obj globject.GLObject)

	// remove releases everything held for obj.
	remove(obj globject.GLObject)

	// destroy releases everything held by the strategy.
	destroy()
}

// drawDirect draws the slices of f for obj into the current render target
// with the current view.
func drawDirect(obj globject.GLObject, f *frame) error {
	if err := obj.PreDraw(); err != nil {
		return err
	}
	var err error
	if len(f.slices) == 1 {
		err = obj.Draw2D(f.slices[0].zpos, f.axes, f.slices[0].xform, nil)
	} else {
		zposes := make([]float64, len(f.slices))
		xforms := make([]*mgl32.Mat4, len(f.slices))
		for i, s := range f.slices {
			zposes[i], xforms[i] = s.zpos, s.xform
		}
		err = obj.DrawAll(f.axes, zposes, xforms)
	}
	return errors.Join(err, obj.PostDraw())
}

// withView draws with view matrices for an orthographic projection of
// [lo, hi] looking down axes.Z(), then restores the canvas view.
func withView(view *globject.View, axes globject.Axes, lo, hi [3]float64, width int, fn func() error) error {
	saved := *view
	defer func() { *view = saved }()
	x, y, z := axes.X(), axes.Y(), axes.Z()
	view.Projection, view.ModelView = routines.Ortho2D(z, lo[x], hi[x], lo[y], hi[y], lo[z], hi[z], false, false)
	view.PixelSize = (hi[x] - lo[x]) / float64(max(width, 1))
	return fn()
}

type onscreen struct{}

func (onscreen) mode() RenderMode { return Onscreen }

func (onscreen) draw(obj globject.GLObject, f *frame) error { return drawDirect(obj, f) }

func (onscreen) invalidate(globject.GLObject) {}
func (onscreen) remove(globject.GLObject)     {}
func (onscreen) destroy()                     {}

type offscreenTarget struct {
	tex   *textures.RenderTexture
	key   string
	dirty bool
}

// offscreen keeps one render texture per GLObject, covering the extent
// of the frame. Zooming and panning only redraw the textures.
type offscreen struct {
	c       *twoD
	targets map[uint64]*offscreenTarget
}

func newOffscreen(c *twoD) *offscreen {
	return &offscreen{c: c, targets: map[uint64]*offscreenTarget{}}
}

func (o *offscreen) mode() RenderMode { return Offscreen }

func (o *offscreen) textureSize() (int, int) {
	if s := o.c.opts.TextureSize; s > 0 {
		return s, s
	}
	return o.c.width, o.c.height
}

func frameKey(f *frame, w, h int) string {
	key := fmt.Sprint(f.axes, f.lo, f.hi, w, h)
	for _, s := range f.slices {
		key += fmt.Sprint(s.zpos)
		if s.xform != nil {
			key += fmt.Sprint(*s.xform)
		}
	}
	return key
}

func (o *offscreen) draw(obj globject.GLObject, f *frame) error {
	c := o.c
	id := obj.Overlay().ID()
	t, ok := o.targets[id]
	if !ok {
		t = &offscreenTarget{
			tex:   textures.NewRenderTexture(c.env.Backend, fmt.Sprintf("%s_offscreen_%s", c.name, obj.Name())),
			dirty: true,
		}
		o.targets[id] = t
	}
	w, h := o.textureSize()
	if err := t.tex.SetSize(w, h); err != nil {
		return err
	}
	if key := frameKey(f, w, h); t.dirty || key != t.key {
		err := withView(c.env.View, f.axes, f.lo, f.hi, w, func() error {
			t.tex.Clear([4]float32{0, 0, 0, 0})
			defer t.tex.UnbindAsTarget()
			return drawDirect(obj, f)
		})
		c.env.Backend.Viewport(0, 0, c.width, c.height)
		if err != nil {
			return err
		}
		t.key, t.dirty = key, false
	}
	z := f.axes.Z()
	return c.blitter.Draw(t.tex.Texture, f.lo, f.hi, z, (f.lo[z]+f.hi[z])/2, f.mvp)
}

func (o *offscreen) invalidate(obj globject.GLObject) {
	if t, ok := o.targets[obj.Overlay().ID()]; ok {
		t.dirty = true
	}
}

func (o *offscreen) remove(obj globject.GLObject) {
	id := obj.Overlay().ID()
	if t, ok := o.targets[id]; ok {
		t.tex.Destroy()
		delete(o.targets, id)
	}
}

func (o *offscreen) destroy() {
	for id, t := range o.targets {
		t.tex.Destroy()
		delete(o.targets, id)
	}
}

// stackOwner is a GLObject which can render the slices of a shared stack,
// with the view of its canvas.
type stackOwner struct {
	obj   globject.GLObject
	view  *globject.View
	axes  globject.Axes
	width int
}

// sharedStack is the registry resource holding a texture stack and the
// GLObjects, one per canvas, which can render it.
type sharedStack struct {
	stack  *textures.RenderTextureStack
	owners []*stackOwner
}

func (s *sharedStack) Destroy() { s.stack.Destroy() }

func (s *sharedStack) render(target *textures.RenderTexture, zpos float64) error {
	for _, o := range s.owners {
		if o.obj.Destroyed() || !o.obj.Ready() {
			continue
		}
		b := s.stack.Bounds()
		f := &frame{axes: o.axes, slices: []slice{{zpos: zpos}}}
		return withView(o.view, o.axes, b.Lo, b.Hi, o.width, func() error {
			return drawDirect(o.obj, f)
		})
	}
	return fmt.Errorf("texture stack %s has no ready renderer", s.stack.Name())
}

type stackRef struct {
	key    resources.Key
	shared *sharedStack
	owner  *stackOwner
}

// prerender draws slices from per-overlay texture stacks held in the
// resource registry. Stacks are shared between canvases while the
// overlay's display is synchronised, and private to the canvas otherwise.
type prerender struct {
	c    *twoD
	refs map[uint64]*stackRef
}

func newPrerender(c *twoD) *prerender {
	return &prerender{c: c, refs: map[uint64]*stackRef{}}
}

func (p *prerender) mode() RenderMode { return Prerender }

func (p *prerender) key(obj globject.GLObject) resources.Key {
	ov := obj.Overlay()
	key := textures.StackKey(ov, p.c.zax)
	if !p.c.env.Context.Synced(ov) {
		key = key.Private(p.c.id)
	}
	return key
}

func (p *prerender) acquire(obj globject.GLObject) (*stackRef, error) {
	id := obj.Overlay().ID()
	key := p.key(obj)
	if ref, ok := p.refs[id]; ok {
		if ref.key == key && ref.owner.obj == obj {
			return ref, nil
		}
		p.release(id)
	}
	c := p.c
	shared, err := resources.Acquire(c.env.Registry, key, func() (*sharedStack, error) {
		s := &sharedStack{}
		s.stack = textures.NewRenderTextureStack(c.env.Backend, c.env.Queue, key.String(), s.render)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	owner := &stackOwner{obj: obj, view: c.env.View, axes: globject.ZAxes(c.zax), width: c.stackTextureSize()}
	shared.owners = append(shared.owners, owner)
	ref := &stackRef{key: key, shared: shared, owner: owner}
	p.refs[id] = ref
	logx.Logger().Debug("texture stack acquired", "canvas", c.name, "key", key.String(),
		"refs", c.env.Registry.RefCount(key))
	return ref, nil
}

func (p *prerender) release(id uint64) {
	ref, ok := p.refs[id]
	if !ok {
		return
	}
	delete(p.refs, id)
	ref.shared.owners = slices.DeleteFunc(ref.shared.owners, func(o *stackOwner) bool { return o == ref.owner })
	if err := p.c.env.Registry.Delete(ref.key); err != nil {
		logx.Logger().Warn("texture stack release failed", "key", ref.key.String(), "error", err)
	}
}

func (p *prerender) draw(obj globject.GLObject, f *frame) error {
	c := p.c
	ref, err := p.acquire(obj)
	if err != nil {
		return err
	}
	size := c.stackTextureSize()
	stack := ref.shared.stack
	if err := stack.Configure(c.zax, obj.Bounds(), c.stackDepth(), size, size); err != nil {
		return err
	}
	bounds := stack.Bounds()
	for _, s := range f.slices {
		tex, err := stack.Texture(s.zpos)
		c.env.Backend.Viewport(0, 0, c.width, c.height)
		if err != nil {
			return err
		}
		if tex == nil {
			continue
		}
		mvp := f.mvp
		if s.xform != nil {
			mvp = mvp.Mul4(*s.xform)
		}
		if err := c.blitter.Draw(tex.Texture, bounds.Lo, bounds.Hi, c.zax, s.zpos, mvp); err != nil {
			return err
		}
	}
	return nil
}

// stack returns the texture stack used for obj, if one has been acquired.
func (p *prerender) stack(obj globject.GLObject) (*textures.RenderTextureStack, bool) {
	ref, ok := p.refs[obj.Overlay().ID()]
	if !ok {
		return nil, false
	}
	return ref.shared.stack, true
}

func (p *prerender) invalidate(obj globject.GLObject) {
	if ref, ok := p.refs[obj.Overlay().ID()]; ok {
		ref.shared.stack.Invalidate()
	}
}

func (p *prerender) remove(obj globject.GLObject) { p.release(obj.Overlay().ID()) }

func (p *prerender) destroy() {
	for id := range p.refs {
		p.release(id)
	}
}
