package canvas

import (
	"fmt"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Options configures a 2D canvas.
type Options struct {
	RenderMode RenderMode
	Background [4]float32

	// TextureSize is the edge length of offscreen and prerendered
	// textures. Offscreen textures default to the canvas size and
	// prerendered slices to 256.
	TextureSize int

	// StackDepth is the number of slices in prerendered texture stacks.
	StackDepth int

	ShowCursor   bool
	CursorColour models.Colour
}

// DefaultOptions returns onscreen rendering on a black background with a
// green cursor.
func DefaultOptions() Options {
	return Options{
		RenderMode:   Onscreen,
		Background:   [4]float32{0, 0, 0, 1},
		StackDepth:   textures.DefaultStackDepth,
		ShowCursor:   true,
		CursorColour: models.RGB(0, 1, 0),
	}
}

// twoD holds the state shared by the slice and lightbox canvases: the
// render mode strategy and the texture blitter it uses.
type twoD struct {
	*canvas
	opts     Options
	blitter  *textures.Blitter
	renderer renderer
}

func newTwoD(kind string, env Env, zax int, opts Options) (*twoD, error) {
	if opts.RenderMode == "" {
		opts.RenderMode = Onscreen
	}
	if _, err := ParseRenderMode(string(opts.RenderMode)); err != nil {
		return nil, err
	}
	c := &twoD{canvas: newCanvas(kind, env, zax, opts.Background), opts: opts}
	c.renderer = c.newRenderer(opts.RenderMode)
	c.objectUpdated = func(obj globject.GLObject) { c.renderer.invalidate(obj) }
	c.objectRemoved = func(obj globject.GLObject) { c.renderer.remove(obj) }
	env.Context.Notifier().Listen(c.listener, models.SyncDisplayProp, func(string) { c.resetRenderer() })
	return c, nil
}

func (c *twoD) newRenderer(mode RenderMode) renderer {
	switch mode {
	case Offscreen:
		return newOffscreen(c)
	case Prerender:
		return newPrerender(c)
	}
	return onscreen{}
}

// Initialise moves the canvas into the ready state with the given size
// in pixels. GLObject creation queued before now proceeds on the next
// idle cycle.
func (c *twoD) Initialise(width, height int) error {
	if c.blitter == nil && c.state == Uninitialised {
		bl, err := textures.NewBlitter(c.env.Backend)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		c.blitter = bl
	}
	return c.initialise(width, height)
}

// Resize changes the canvas size in pixels.
func (c *twoD) Resize(width, height int) {
	c.resize(width, height)
	c.refresh()
}

// RenderMode returns the current render mode.
func (c *twoD) RenderMode() RenderMode { return c.renderer.mode() }

// SetRenderMode switches render mode. Every resource held for the old
// mode is released before the new mode is used.
func (c *twoD) SetRenderMode(mode RenderMode) error {
	if _, err := ParseRenderMode(string(mode)); err != nil {
		return err
	}
	if mode == c.renderer.mode() {
		return nil
	}
	logx.Logger().Info("render mode changed", "canvas", c.name, "from", string(c.renderer.mode()), "to", string(mode))
	c.renderer.destroy()
	c.renderer = c.newRenderer(mode)
	c.opts.RenderMode = mode
	c.refresh()
	return nil
}

// resetRenderer discards every cached texture, keeping the render mode.
func (c *twoD) resetRenderer() {
	if c.state == Destroyed {
		return
	}
	c.renderer.destroy()
	c.renderer = c.newRenderer(c.renderer.mode())
	c.refresh()
}

// TextureStack returns the prerendered texture stack used for ov, if the
// canvas is in prerender mode and has drawn ov.
func (c *twoD) TextureStack(ov models.Overlay) (*textures.RenderTextureStack, bool) {
	p, ok := c.renderer.(*prerender)
	if !ok {
		return nil, false
	}
	obj, ok := c.objects[ov.ID()]
	if !ok {
		return nil, false
	}
	return p.stack(obj)
}

func (c *twoD) stackTextureSize() int {
	if c.opts.TextureSize > 0 {
		return c.opts.TextureSize
	}
	return 256
}

func (c *twoD) stackDepth() int {
	if c.opts.StackDepth > 0 {
		return c.opts.StackDepth
	}
	return textures.DefaultStackDepth
}

// drawOverlays draws every drawable GLObject with the render mode
// strategy. Failures are logged and do not stop the other overlays.
func (c *twoD) drawOverlays(f *frame) {
	for _, obj := range c.drawable() {
		if err := c.renderer.draw(obj, f); err != nil {
			logx.Logger().Warn("overlay draw failed", "canvas", c.name, "object", obj.Name(), "error", err)
		}
	}
}

// setZAx changes the depth axis, discarding cached textures.
func (c *twoD) setZAx(zax int) {
	if zax == c.zax {
		return
	}
	c.zax = zax
	if c.annot != nil {
		c.annot.SetZAx(zax)
	}
	c.resetRenderer()
}

// Destroy releases every resource held by the canvas. It is safe to call
// more than once.
func (c *twoD) Destroy() {
	if c.state == Destroyed {
		return
	}
	c.renderer.destroy()
	c.destroy()
	if c.blitter != nil {
		c.blitter.Destroy()
	}
}
