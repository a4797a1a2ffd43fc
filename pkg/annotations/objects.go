package annotations

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Kind names an annotation type, as written in annotation files.
type Kind string

const (
	PointKind          Kind = "Point"
	LineKind           Kind = "Line"
	ArrowKind          Kind = "Arrow"
	RectKind           Kind = "Rect"
	EllipseKind        Kind = "Ellipse"
	VoxelSelectionKind Kind = "VoxelSelection"
	TextKind           Kind = "Text"
)

// Object is implemented by every annotation type.
type Object interface {
	Kind() Kind
	Attrs() *Base
	draw(dc *drawContext) error
}

// Base holds the attributes shared by every annotation.
type Base struct {
	Colour    models.Colour
	LineWidth float64

	// Alpha is the opacity as a percentage.
	Alpha   float64
	Enabled bool

	// When HonourZLimits is set, 2D draws are skipped at depths outside
	// [ZMin, ZMax]. A nil bound is unlimited.
	HonourZLimits bool
	ZMin, ZMax    *float64

	// Created is set when the annotation is first queued. An annotation
	// with a non-zero Expiry is not drawn once it has expired.
	Created time.Time
	Expiry  time.Duration

	// ApplyMVP selects display coordinates on the canvas axes. Otherwise
	// coordinates are proportions of the canvas size.
	ApplyMVP bool
}

// DefaultBase returns the attributes of a new annotation: opaque, one
// pixel wide, enabled, in display coordinates.
func DefaultBase(colour models.Colour) Base {
	return Base{Colour: colour, LineWidth: 1, Alpha: 100, Enabled: true, ApplyMVP: true}
}

// Attrs implements Object.
func (b *Base) Attrs() *Base { return b }

// SetZLimits enables Z limits of [zmin, zmax].
func (b *Base) SetZLimits(zmin, zmax float64) {
	b.HonourZLimits = true
	b.ZMin, b.ZMax = &zmin, &zmax
}

// Expired reports whether the annotation has expired at now.
func (b *Base) Expired(now time.Time) bool {
	return b.Expiry > 0 && now.Sub(b.Created) > b.Expiry
}

// InZLimits reports whether depth zpos is within the Z limits.
func (b *Base) InZLimits(zpos float64) bool {
	if !b.HonourZLimits {
		return true
	}
	if b.ZMin != nil && zpos < *b.ZMin {
		return false
	}
	if b.ZMax != nil && zpos > *b.ZMax {
		return false
	}
	return true
}

func (b *Base) visible(now time.Time, zpos float64, twoD bool) bool {
	if !b.Enabled || b.Expired(now) {
		return false
	}
	return !twoD || b.InZLimits(zpos)
}

func (b *Base) colour() mgl32.Vec4 {
	return colourWithAlpha(b.Colour, b.Alpha)
}

func colourWithAlpha(c models.Colour, alpha float64) mgl32.Vec4 {
	return mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(alpha / 100)}
}

// Point is a single point, drawn LineWidth pixels wide.
type Point struct {
	Base
	X, Y float64

	// Depth, if set, replaces the slice depth of the canvas. It is not
	// written to annotation files.
	Depth *float64
}

// NewPoint creates a point annotation.
func NewPoint(x, y float64, colour models.Colour) *Point {
	return &Point{Base: DefaultBase(colour), X: x, Y: y}
}

// Kind implements Object.
func (p *Point) Kind() Kind { return PointKind }

func (p *Point) draw(dc *drawContext) error {
	if p.Depth != nil {
		at := *dc
		at.zpos = *p.Depth
		dc = &at
	}
	dc.a.backend.PointSize(float32(p.LineWidth))
	return dc.shape(gl.Points, p.colour(), [][2]float64{{p.X, p.Y}})
}

// Line is a line segment.
type Line struct {
	Base
	X1, Y1, X2, Y2 float64
}

// NewLine creates a line annotation.
func NewLine(x1, y1, x2, y2 float64, colour models.Colour) *Line {
	return &Line{Base: DefaultBase(colour), X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Kind implements Object.
func (l *Line) Kind() Kind { return LineKind }

func (l *Line) draw(dc *drawContext) error {
	dc.a.backend.LineWidth(float32(l.LineWidth))
	return dc.shape(gl.Lines, l.colour(), [][2]float64{{l.X1, l.Y1}, {l.X2, l.Y2}})
}

// Arrow is a line segment with a triangular head at (X2, Y2).
type Arrow struct {
	Base
	X1, Y1, X2, Y2 float64
}

// NewArrow creates an arrow annotation.
func NewArrow(x1, y1, x2, y2 float64, colour models.Colour) *Arrow {
	return &Arrow{Base: DefaultBase(colour), X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Kind implements Object.
func (a *Arrow) Kind() Kind { return ArrowKind }

// head returns the three corners of the arrow head. Its length is three
// line widths, and at least six pixels.
func (a *Arrow) head(pixel [2]float64) [][2]float64 {
	dx, dy := a.X2-a.X1, a.Y2-a.Y1
	n := math.Hypot(dx, dy)
	if n == 0 {
		return nil
	}
	dx, dy = dx/n, dy/n
	size := math.Max(3*a.LineWidth, 6)
	lx, ly := size*pixel[0], size*pixel[1]
	base := [2]float64{a.X2 - dx*lx, a.Y2 - dy*ly}
	px, py := -dy*lx/2, dx*ly/2
	return [][2]float64{
		{a.X2, a.Y2},
		{base[0] + px, base[1] + py},
		{base[0] - px, base[1] - py},
	}
}

func (a *Arrow) draw(dc *drawContext) error {
	dc.a.backend.LineWidth(float32(a.LineWidth))
	col := a.colour()
	if err := dc.shape(gl.Lines, col, [][2]float64{{a.X1, a.Y1}, {a.X2, a.Y2}}); err != nil {
		return err
	}
	head := a.head(dc.pixel)
	if head == nil {
		return nil
	}
	return dc.shape(gl.Triangles, col, head)
}

// Rect is an axis aligned rectangle with corner (X, Y) and size (W, H).
type Rect struct {
	Base
	X, Y, W, H float64
	Filled     bool
	Border     bool
	FillColour models.Colour
}

// NewRect creates a rectangle with a border and no fill.
func NewRect(x, y, w, h float64, colour models.Colour) *Rect {
	return &Rect{Base: DefaultBase(colour), X: x, Y: y, W: w, H: h, Border: true, FillColour: colour}
}

// Kind implements Object.
func (r *Rect) Kind() Kind { return RectKind }

func (r *Rect) draw(dc *drawContext) error {
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	if r.Filled {
		// the fill is more transparent than the border
		fill := colourWithAlpha(r.FillColour, r.Alpha/2)
		tris := [][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x0, y1}, {x1, y0}, {x1, y1}}
		if err := dc.shape(gl.Triangles, fill, tris); err != nil {
			return err
		}
	}
	if !r.Border {
		return nil
	}
	dc.a.backend.LineWidth(float32(r.LineWidth))
	return dc.shape(gl.LineLoop, r.colour(), [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}})
}

// Ellipse is an axis aligned ellipse centred at (X, Y) with radii W and
// H, drawn with NPoints vertices.
type Ellipse struct {
	Base
	X, Y, W, H float64
	NPoints    int
	Filled     bool
	Border     bool
	FillColour models.Colour
}

// NewEllipse creates an ellipse with a border and no fill.
func NewEllipse(x, y, w, h float64, colour models.Colour) *Ellipse {
	return &Ellipse{Base: DefaultBase(colour), X: x, Y: y, W: w, H: h, NPoints: 60, Border: true, FillColour: colour}
}

// Kind implements Object.
func (e *Ellipse) Kind() Kind { return EllipseKind }

func (e *Ellipse) outline() [][2]float64 {
	circle := routines.Circle([3]float64{e.X, e.Y, 0}, e.W, e.H, 0, 1, max(e.NPoints, 3))
	pts := make([][2]float64, len(circle))
	for i, c := range circle {
		pts[i] = [2]float64{c[0], c[1]}
	}
	return pts
}

func (e *Ellipse) draw(dc *drawContext) error {
	pts := e.outline()
	if e.Filled {
		fill := colourWithAlpha(e.FillColour, e.Alpha/2)
		tris := make([][2]float64, 0, 3*len(pts))
		for i := range pts {
			tris = append(tris, [2]float64{e.X, e.Y}, pts[i], pts[(i+1)%len(pts)])
		}
		if err := dc.shape(gl.Triangles, fill, tris); err != nil {
			return err
		}
	}
	if !e.Border {
		return nil
	}
	dc.a.backend.LineWidth(float32(e.LineWidth))
	return dc.shape(gl.LineLoop, e.colour(), pts)
}

// VoxelSelection draws the selected voxels of a Selection over an image,
// as a flat coloured mask. It owns a texture which must be released with
// Destroy.
type VoxelSelection struct {
	Base
	opts *models.ImageOpts
	tex  *textures.SelectionTexture
}

// NewVoxelSelection creates a voxel selection annotation for sel, which
// must have the shape of the image displayed with opts.
func NewVoxelSelection(b gl.Backend, name string, sel *models.Selection, opts *models.ImageOpts, colour models.Colour) (*VoxelSelection, error) {
	if sel.Shape() != opts.Image().Shape3() {
		return nil, fmt.Errorf("selection shape %v does not match image %s shape %v",
			sel.Shape(), opts.Image().Name(), opts.Image().Shape3())
	}
	tex, err := textures.NewSelectionTexture(b, name, sel)
	if err != nil {
		return nil, err
	}
	return &VoxelSelection{Base: DefaultBase(colour), opts: opts, tex: tex}, nil
}

// Kind implements Object.
func (v *VoxelSelection) Kind() Kind { return VoxelSelectionKind }

func (v *VoxelSelection) draw(dc *drawContext) error {
	if !v.ApplyMVP {
		return fmt.Errorf("voxel selections must be drawn in display coordinates")
	}
	if !v.opts.DisplayBounds().ContainsAlong(dc.axes[2], dc.zpos) || !v.tex.Ready() {
		return nil
	}
	shape := v.opts.Image().Shape3()
	verts, _, tcs := routines.Slice2D(shape, v.opts.VoxToDisplay(), dc.axes[2], dc.zpos, nil)

	prog := dc.a.sel
	prog.Load()
	defer prog.Unload()
	err := prog.SetAll(map[string]any{
		"MVP":              dc.mvp,
		"colour":           v.colour(),
		"selectionTexture": int32(0),
	})
	if err != nil {
		return err
	}
	v.tex.Bind(0)
	defer v.tex.Unbind(0)
	return dc.a.backend.Draw(gl.Triangles, gl.VertexData{
		Vertices:  routines.Flatten(verts),
		TexCoords: routines.Flatten(tcs),
		TexComps:  3,
	})
}

// Destroy releases the selection texture.
func (v *VoxelSelection) Destroy() { v.tex.Destroy() }
