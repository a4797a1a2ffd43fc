package canvas

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
)

// LightBoxOptions configures the slice grid of a lightbox canvas.
type LightBoxOptions struct {
	// SliceSpacing is the distance between slices in display units.
	SliceSpacing float64
	NCols        int

	// ZRange limits the slices to a depth range in display coordinates.
	// The display bounds are used when it is nil.
	ZRange *[2]float64

	ShowGridLines bool
}

// DefaultLightBoxOptions returns a five column grid of slices one display
// unit apart.
func DefaultLightBoxOptions() LightBoxOptions {
	return LightBoxOptions{SliceSpacing: 1, NCols: 5}
}

var (
	// ErrSliceSpacing is returned for a slice spacing which is not positive.
	ErrSliceSpacing = errors.New("slice spacing must be positive")
	// ErrNCols is returned for fewer than one column.
	ErrNCols = errors.New("number of columns must be at least one")
	// ErrZRange is returned for a Z range whose low end is not below its
	// high end.
	ErrZRange = errors.New("invalid Z range")
)

func (o LightBoxOptions) validate() error {
	if !(o.SliceSpacing > 0) {
		return fmt.Errorf("%w: %v", ErrSliceSpacing, o.SliceSpacing)
	}
	if o.NCols < 1 {
		return fmt.Errorf("%w: %d", ErrNCols, o.NCols)
	}
	if o.ZRange != nil && !(o.ZRange[0] < o.ZRange[1]) {
		return fmt.Errorf("%w: %v", ErrZRange, *o.ZRange)
	}
	return nil
}

// LightBoxCanvas draws a grid of slices at increasing depth. Slices are
// laid out left to right and top to bottom.
type LightBoxCanvas struct {
	*twoD
	lb LightBoxOptions

	// derived from lb and the display bounds by layout
	nslices int
	nrows   int
	zlo     float64
	cell    [2]float64
	origin  [2]float64
}

// NewLightBoxCanvas creates a lightbox canvas looking down zax.
func NewLightBoxCanvas(env Env, zax int, opts Options, lb LightBoxOptions) (*LightBoxCanvas, error) {
	if zax < 0 || zax > 2 {
		return nil, fmt.Errorf("invalid depth axis %d", zax)
	}
	if err := lb.validate(); err != nil {
		return nil, err
	}
	tc, err := newTwoD("lightbox", env, zax, opts)
	if err != nil {
		return nil, err
	}
	c := &LightBoxCanvas{twoD: tc, lb: lb}
	c.layout()
	env.Context.Notifier().Listen(c.listener, models.BoundsProp, func(string) {
		c.layout()
		c.refresh()
	})
	return c, nil
}

// Options returns the grid options.
func (c *LightBoxCanvas) Options() LightBoxOptions { return c.lb }

// SetSliceSpacing sets the distance between slices.
func (c *LightBoxCanvas) SetSliceSpacing(spacing float64) error {
	lb := c.lb
	lb.SliceSpacing = spacing
	return c.setOptions(lb)
}

// SetNCols sets the number of grid columns.
func (c *LightBoxCanvas) SetNCols(ncols int) error {
	lb := c.lb
	lb.NCols = ncols
	return c.setOptions(lb)
}

// SetZRange limits the slices to [lo, hi].
func (c *LightBoxCanvas) SetZRange(lo, hi float64) error {
	lb := c.lb
	lb.ZRange = &[2]float64{lo, hi}
	return c.setOptions(lb)
}

// ClearZRange shows slices over the whole display bounds.
func (c *LightBoxCanvas) ClearZRange() {
	lb := c.lb
	lb.ZRange = nil
	_ = c.setOptions(lb)
}

// SetShowGridLines shows or hides the lines between slices.
func (c *LightBoxCanvas) SetShowGridLines(show bool) {
	c.lb.ShowGridLines = show
	c.refresh()
}

func (c *LightBoxCanvas) setOptions(lb LightBoxOptions) error {
	if err := lb.validate(); err != nil {
		return err
	}
	c.lb = lb
	c.layout()
	c.refresh()
	return nil
}

// SetZAx changes the depth axis.
func (c *LightBoxCanvas) SetZAx(zax int) error {
	if zax < 0 || zax > 2 {
		return fmt.Errorf("invalid depth axis %d", zax)
	}
	c.setZAx(zax)
	c.layout()
	return nil
}

// layout recomputes the slice and row counts and the cell size.
func (c *LightBoxCanvas) layout() {
	axes := globject.ZAxes(c.zax)
	b := c.displayBounds()
	zlo, zhi := b.Lo[c.zax], b.Hi[c.zax]
	if c.lb.ZRange != nil {
		zlo, zhi = c.lb.ZRange[0], c.lb.ZRange[1]
	}
	// a tolerance keeps an exact multiple of the spacing from gaining a slice
	c.nslices = max(int(math.Ceil((zhi-zlo)/c.lb.SliceSpacing-1e-9)), 1)
	c.nrows = (c.nslices + c.lb.NCols - 1) / c.lb.NCols
	c.zlo = zlo
	c.cell = [2]float64{b.Len(axes.X()), b.Len(axes.Y())}
	c.origin = [2]float64{b.Lo[axes.X()], b.Lo[axes.Y()]}
}

// NSlices returns the number of slices in the grid.
func (c *LightBoxCanvas) NSlices() int { return c.nslices }

// NRows returns the number of grid rows.
func (c *LightBoxCanvas) NRows() int { return c.nrows }

// SlicePos returns the depth of slice i.
func (c *LightBoxCanvas) SlicePos(i int) float64 {
	return c.zlo + (float64(i)+0.5)*c.lb.SliceSpacing
}

// SliceIndex returns the slice showing depth zpos.
func (c *LightBoxCanvas) SliceIndex(zpos float64) (int, bool) {
	i := int(math.Floor((zpos - c.zlo) / c.lb.SliceSpacing))
	if i < 0 || i >= c.nslices {
		return 0, false
	}
	return i, true
}

// cellOrigin returns the grid coordinates of the bottom left corner of
// the cell of slice i. Row zero is at the top of the grid.
func (c *LightBoxCanvas) cellOrigin(i int) (float64, float64) {
	row, col := i/c.lb.NCols, i%c.lb.NCols
	return float64(col) * c.cell[0], float64(c.nrows-1-row) * c.cell[1]
}

func (c *LightBoxCanvas) gridSize() (float64, float64) {
	return float64(c.lb.NCols) * c.cell[0], float64(c.nrows) * c.cell[1]
}

// Region returns the grid coordinate ranges shown on the canvas.
func (c *LightBoxCanvas) Region() (xmin, xmax, ymin, ymax float64) {
	w, h := c.gridSize()
	return routines.PreserveAspectRatio(c.width, c.height, 0, w, 0, h)
}

// xform returns the translation from display coordinates into the cell of
// slice i.
func (c *LightBoxCanvas) xform(i int) mgl32.Mat4 {
	axes := globject.ZAxes(c.zax)
	gx, gy := c.cellOrigin(i)
	var t [3]float32
	t[axes.X()] = float32(gx - c.origin[0])
	t[axes.Y()] = float32(gy - c.origin[1])
	return mgl32.Translate3D(t[0], t[1], t[2])
}

// WorldToCanvas converts a display coordinate to a canvas pixel, with the
// origin at the bottom left. It fails for depths outside the grid.
func (c *LightBoxCanvas) WorldToCanvas(p [3]float64) (float64, float64, bool) {
	i, ok := c.SliceIndex(p[c.zax])
	if !ok {
		return 0, 0, false
	}
	axes := globject.ZAxes(c.zax)
	gx, gy := c.cellOrigin(i)
	gx += p[axes.X()] - c.origin[0]
	gy += p[axes.Y()] - c.origin[1]
	xmin, xmax, ymin, ymax := c.Region()
	return (gx - xmin) / (xmax - xmin) * float64(c.width), (gy - ymin) / (ymax - ymin) * float64(c.height), true
}

// CanvasToWorld converts a canvas pixel to a display coordinate. It fails
// for pixels outside every displayed slice.
func (c *LightBoxCanvas) CanvasToWorld(x, y float64) ([3]float64, bool) {
	xmin, xmax, ymin, ymax := c.Region()
	gx := xmin + x/float64(c.width)*(xmax-xmin)
	gy := ymin + y/float64(c.height)*(ymax-ymin)
	gw, gh := c.gridSize()
	if gx < 0 || gy < 0 || gx >= gw || gy >= gh || c.cell[0] <= 0 || c.cell[1] <= 0 {
		return [3]float64{}, false
	}
	col := int(gx / c.cell[0])
	fromBottom := int(gy / c.cell[1])
	i := (c.nrows-1-fromBottom)*c.lb.NCols + col
	if i >= c.nslices {
		return [3]float64{}, false
	}
	axes := globject.ZAxes(c.zax)
	var p [3]float64
	p[axes.X()] = c.origin[0] + gx - float64(col)*c.cell[0]
	p[axes.Y()] = c.origin[1] + gy - float64(fromBottom)*c.cell[1]
	p[c.zax] = c.SlicePos(i)
	return p, true
}

// Draw draws every slice of the grid, the grid lines and the annotations.
func (c *LightBoxCanvas) Draw() error {
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

	slices := make([]slice, c.nslices)
	for i := range slices {
		xf := c.xform(i)
		slices[i] = slice{zpos: c.SlicePos(i), xform: &xf}
	}
	gw, gh := c.gridSize()
	lo, hi := b.Lo, b.Hi
	lo[axes.X()], hi[axes.X()] = 0, gw
	lo[axes.Y()], hi[axes.Y()] = 0, gh
	c.drawOverlays(&frame{
		axes:   axes,
		slices: slices,
		lo:     lo,
		hi:     hi,
		mvp:    view.Projection.Mul4(view.ModelView),
	})

	c.gridAnnotations()
	zpos := c.env.Context.Location()[c.zax]
	c.annot.SetView(view.Projection, view.ModelView, c.width, c.height, view.PixelSize)
	c.annot.Draw2D(zpos)
	return nil
}

// gridAnnotations queues the grid lines and the highlight around the
// slice at the cursor for the next draw.
func (c *LightBoxCanvas) gridAnnotations() {
	gw, gh := c.gridSize()
	if c.lb.ShowGridLines {
		grey := models.RGB(0.5, 0.5, 0.5)
		for col := 1; col < c.lb.NCols; col++ {
			x := float64(col) * c.cell[0]
			c.annot.Enqueue(annotations.NewLine(x, 0, x, gh, grey), false, false)
		}
		for row := 1; row < c.nrows; row++ {
			y := float64(row) * c.cell[1]
			c.annot.Enqueue(annotations.NewLine(0, y, gw, y, grey), false, false)
		}
	}
	if !c.opts.ShowCursor {
		return
	}
	if i, ok := c.SliceIndex(c.env.Context.Location()[c.zax]); ok {
		x, y := c.cellOrigin(i)
		c.annot.Enqueue(annotations.NewRect(x, y, c.cell[0], c.cell[1], c.opts.CursorColour), false, false)
	}
}
