package canvas

import (
	"fmt"
	"math"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
)

// SliceCanvas draws one orthographic slice through the overlays, at the
// display context location along its depth axis.
type SliceCanvas struct {
	*twoD

	// zoom is a percentage; 100 fits the display bounds to the canvas.
	zoom float64

	// centre of the displayed region along the horizontal and vertical
	// axes. It follows the bounds centre until the canvas is panned.
	centre    [2]float64
	hasCentre bool

	cursor [2]*annotations.Line
}

// NewSliceCanvas creates a slice canvas looking down zax.
func NewSliceCanvas(env Env, zax int, opts Options) (*SliceCanvas, error) {
	if zax < 0 || zax > 2 {
		return nil, fmt.Errorf("invalid depth axis %d", zax)
	}
	c, err := newTwoD("slice", env, zax, opts)
	if err != nil {
		return nil, err
	}
	return &SliceCanvas{twoD: c, zoom: 100}, nil
}

// SetZAx changes the depth axis. Cached textures are discarded and the
// canvas is panned back to the centre.
func (c *SliceCanvas) SetZAx(zax int) error {
	if zax < 0 || zax > 2 {
		return fmt.Errorf("invalid depth axis %d", zax)
	}
	c.hasCentre = false
	c.setZAx(zax)
	return nil
}

// Zoom returns the zoom level as a percentage.
func (c *SliceCanvas) Zoom() float64 { return c.zoom }

// SetZoom sets the zoom level as a percentage, of at least 1.
func (c *SliceCanvas) SetZoom(zoom float64) {
	c.zoom = math.Max(zoom, 1)
	c.clampCentre()
	c.refresh()
}

// Pan moves the centre of the displayed region by (dx, dy) display units.
// The centre is kept within the display bounds.
func (c *SliceCanvas) Pan(dx, dy float64) {
	cx, cy := c.centreXY()
	c.centre, c.hasCentre = [2]float64{cx + dx, cy + dy}, true
	c.clampCentre()
	c.refresh()
}

// ResetPan centres the displayed region on the display bounds.
func (c *SliceCanvas) ResetPan() {
	c.hasCentre = false
	c.refresh()
}

func (c *SliceCanvas) centreXY() (float64, float64) {
	if c.hasCentre {
		return c.centre[0], c.centre[1]
	}
	axes := globject.ZAxes(c.zax)
	mid := c.displayBounds().Centre()
	return mid[axes.X()], mid[axes.Y()]
}

func (c *SliceCanvas) clampCentre() {
	if !c.hasCentre {
		return
	}
	axes := globject.ZAxes(c.zax)
	b := c.displayBounds()
	c.centre[0] = math.Min(math.Max(c.centre[0], b.Lo[axes.X()]), b.Hi[axes.X()])
	c.centre[1] = math.Min(math.Max(c.centre[1], b.Lo[axes.Y()]), b.Hi[axes.Y()])
}

// Region returns the horizontal and vertical display ranges shown on the
// canvas, after zooming, panning and matching the canvas aspect ratio.
func (c *SliceCanvas) Region() (xmin, xmax, ymin, ymax float64) {
	axes := globject.ZAxes(c.zax)
	b := c.displayBounds()
	scale := 100 / c.zoom
	xlen, ylen := b.Len(axes.X())*scale, b.Len(axes.Y())*scale
	cx, cy := c.centreXY()
	return routines.PreserveAspectRatio(c.width, c.height,
		cx-xlen/2, cx+xlen/2, cy-ylen/2, cy+ylen/2)
}

// WorldToCanvas converts a display coordinate to a canvas pixel, with the
// origin at the bottom left.
func (c *SliceCanvas) WorldToCanvas(p [3]float64) (float64, float64) {
	axes := globject.ZAxes(c.zax)
	xmin, xmax, ymin, ymax := c.Region()
	x := (p[axes.X()] - xmin) / (xmax - xmin) * float64(c.width)
	y := (p[axes.Y()] - ymin) / (ymax - ymin) * float64(c.height)
	return x, y
}

// CanvasToWorld converts a canvas pixel to a display coordinate on the
// current slice.
func (c *SliceCanvas) CanvasToWorld(x, y float64) [3]float64 {
	axes := globject.ZAxes(c.zax)
	xmin, xmax, ymin, ymax := c.Region()
	p := c.env.Context.Location()
	p[axes.X()] = xmin + x/float64(c.width)*(xmax-xmin)
	p[axes.Y()] = ymin + y/float64(c.height)*(ymax-ymin)
	return p
}

// Draw draws the overlays, the cursor and the annotations.
func (c *SliceCanvas) Draw() error {
	if err := c.check(); err != nil {
		return err
	}
	c.clear()

	axes := globject.ZAxes(c.zax)
	b := c.displayBounds()
	xmin, xmax, ymin, ymax := c.Region()
	view := c.env.View
	view.Projection, view.ModelView = routines.Ortho2D(c.zax, xmin, xmax, ymin, ymax, b.Lo[c.zax], b.Hi[c.zax], false, false)
	view.PixelSize = (xmax - xmin) / float64(c.width)

	zpos := c.env.Context.Location()[c.zax]
	c.drawOverlays(&frame{
		axes:   axes,
		slices: []slice{{zpos: zpos}},
		lo:     b.Lo,
		hi:     b.Hi,
		mvp:    view.Projection.Mul4(view.ModelView),
	})

	c.updateCursor(xmin, xmax, ymin, ymax)
	c.annot.SetView(view.Projection, view.ModelView, c.width, c.height, view.PixelSize)
	c.annot.Draw2D(zpos)
	return nil
}

// updateCursor moves the cursor crosshair to the display context location.
func (c *SliceCanvas) updateCursor(xmin, xmax, ymin, ymax float64) {
	if c.cursor[0] == nil {
		for i := range c.cursor {
			c.cursor[i] = annotations.NewLine(0, 0, 0, 0, c.opts.CursorColour)
			c.annot.Enqueue(c.cursor[i], true, true)
		}
	}
	axes := globject.ZAxes(c.zax)
	loc := c.env.Context.Location()
	x, y := loc[axes.X()], loc[axes.Y()]
	h, v := c.cursor[0], c.cursor[1]
	h.X1, h.Y1, h.X2, h.Y2 = xmin, y, xmax, y
	v.X1, v.Y1, v.X2, v.Y2 = x, ymin, x, ymax
	for _, l := range c.cursor {
		l.Colour = c.opts.CursorColour
		l.Enabled = c.opts.ShowCursor
	}
}

// SetCursor shows or hides the cursor crosshair.
func (c *SliceCanvas) SetCursor(show bool, colour models.Colour) {
	c.opts.ShowCursor, c.opts.CursorColour = show, colour
	c.refresh()
}
