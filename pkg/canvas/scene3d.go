package canvas

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
)

// Scene3DOptions configures the camera and compositing of a 3D canvas.
type Scene3DOptions struct {
	Background [4]float32

	// Occlusion draws meshes before every other overlay, so that no
	// mesh is hidden behind a volume. Otherwise volumes are drawn
	// first, each over a cleared depth buffer, and a mesh is only
	// occluded by the last volume drawn.
	Occlusion bool

	// Zoom is a percentage; 100 fits the display bounds to the canvas.
	Zoom float64

	// Azimuth and Elevation rotate the scene about its centre, in
	// degrees, around the vertical and horizontal axes.
	Azimuth   float64
	Elevation float64

	// Offset moves the scene on the screen, in display units.
	Offset [2]float64

	// LightPos is the light position relative to the scene centre, in
	// multiples of the scene radius.
	LightPos [3]float64

	NumSteps int

	ShowCursor   bool
	CursorColour models.Colour
}

// DefaultScene3DOptions returns a black background, no rotation, mesh
// occlusion and a light above and to the right of the camera.
func DefaultScene3DOptions() Scene3DOptions {
	return Scene3DOptions{
		Background:   [4]float32{0, 0, 0, 1},
		Occlusion:    true,
		Zoom:         100,
		LightPos:     [3]float64{1, 1, 2},
		NumSteps:     100,
		ShowCursor:   true,
		CursorColour: models.RGB(0, 1, 0),
	}
}

// Scene3DCanvas draws a 3D rendering of every overlay which supports it.
// Overlays are always drawn onscreen.
type Scene3DCanvas struct {
	*canvas
	opts Scene3DOptions
}

// NewScene3DCanvas creates a 3D canvas.
func NewScene3DCanvas(env Env, opts Scene3DOptions) *Scene3DCanvas {
	if opts.Zoom <= 0 {
		opts.Zoom = 100
	}
	return &Scene3DCanvas{canvas: newCanvas("scene3d", env, 2, opts.Background), opts: opts}
}

// Initialise moves the canvas into the ready state with the given size
// in pixels.
func (c *Scene3DCanvas) Initialise(width, height int) error {
	return c.initialise(width, height)
}

// Resize changes the canvas size in pixels.
func (c *Scene3DCanvas) Resize(width, height int) {
	c.resize(width, height)
	c.refresh()
}

// Options returns the camera and compositing options.
func (c *Scene3DCanvas) Options() Scene3DOptions { return c.opts }

// SetOptions replaces the camera and compositing options.
func (c *Scene3DCanvas) SetOptions(opts Scene3DOptions) {
	if opts.Zoom <= 0 {
		opts.Zoom = 100
	}
	c.opts = opts
	c.bg = opts.Background
	c.refresh()
}

// SetRotation sets the scene rotation in degrees.
func (c *Scene3DCanvas) SetRotation(azimuth, elevation float64) {
	c.opts.Azimuth, c.opts.Elevation = azimuth, elevation
	c.refresh()
}

// SetOcclusion selects the mesh occlusion compositing order.
func (c *Scene3DCanvas) SetOcclusion(on bool) {
	c.opts.Occlusion = on
	c.refresh()
}

func (c *Scene3DCanvas) rotation() mgl32.Mat4 {
	return routines.Rotate(c.opts.Elevation, [3]float64{1, 0, 0}).
		Mul4(routines.Rotate(c.opts.Azimuth, [3]float64{0, 1, 0}))
}

// radius returns the radius of the sphere enclosing the display bounds.
func radius(b models.Bounds) float64 {
	r := 0.5 * math.Sqrt(b.Len(0)*b.Len(0)+b.Len(1)*b.Len(1)+b.Len(2)*b.Len(2))
	return math.Max(r, 1e-3)
}

// ViewMatrices returns the projection and model-view matrices. The
// model-view is offset * zoom * camera * rotation, with the rotation about
// the centre of the display bounds.
func (c *Scene3DCanvas) ViewMatrices() (proj, mv mgl32.Mat4) {
	b := c.displayBounds()
	centre := b.Centre()
	r := radius(b)

	eye := centre
	eye[2] += 3 * r
	camera := routines.LookAt(eye, centre, [3]float64{0, 1, 0})

	ctr := mgl32.Vec3{float32(centre[0]), float32(centre[1]), float32(centre[2])}
	rot := mgl32.Translate3D(ctr[0], ctr[1], ctr[2]).
		Mul4(c.rotation()).
		Mul4(mgl32.Translate3D(-ctr[0], -ctr[1], -ctr[2]))

	zoom := float32(c.opts.Zoom / 100)
	scale := mgl32.Scale3D(zoom, zoom, 1)
	offset := mgl32.Translate3D(float32(c.opts.Offset[0]), float32(c.opts.Offset[1]), 0)
	mv = offset.Mul4(scale).Mul4(camera).Mul4(rot)

	aspect := float64(c.width) / float64(c.height)
	xr, yr := r, r
	if aspect > 1 {
		xr *= aspect
	} else {
		yr /= aspect
	}
	proj = mgl32.Ortho(float32(-xr), float32(xr), float32(-yr), float32(yr), float32(r), float32(5*r))
	return proj, mv
}

// updateView copies the camera into the view shared with the GLObjects.
func (c *Scene3DCanvas) updateView() {
	view := c.env.View
	view.Projection, view.ModelView = c.ViewMatrices()

	b := c.displayBounds()
	r := radius(b)
	view.PixelSize = 2 * r / float64(c.width) * 100 / c.opts.Zoom
	view.NumSteps = max(c.opts.NumSteps, 1)

	// the camera looks down -z; in display space that direction is rotated
	// by the inverse of the scene rotation
	inv := c.rotation().Transpose()
	dir := inv.Mul4x1(mgl32.Vec4{0, 0, -1, 0})
	view.CameraDir = [3]float64{float64(dir[0]), float64(dir[1]), float64(dir[2])}

	centre := b.Centre()
	lp := inv.Mul4x1(mgl32.Vec4{
		float32(c.opts.LightPos[0] * r),
		float32(c.opts.LightPos[1] * r),
		float32(c.opts.LightPos[2] * r),
		0,
	})
	for i := range 3 {
		view.LightPos[i] = centre[i] + float64(lp[i])
	}
}

// ordered returns the GLObjects to draw in compositing order. Objects
// which cannot draw in 3D are left out.
func (c *Scene3DCanvas) ordered() (volumes, meshes []globject.GLObject) {
	for _, obj := range c.drawable() {
		if !globject.Supports3D(obj) {
			continue
		}
		if obj.Type() == models.MeshType {
			meshes = append(meshes, obj)
		} else {
			volumes = append(volumes, obj)
		}
	}
	return volumes, meshes
}

func draw3D(obj globject.GLObject) error {
	if err := obj.PreDraw(); err != nil {
		return err
	}
	err := obj.(globject.Drawer3D).Draw3D(nil, nil)
	return errors.Join(err, obj.PostDraw())
}

// Draw draws the scene and the annotations.
func (c *Scene3DCanvas) Draw() error {
	if err := c.check(); err != nil {
		return err
	}
	c.clear()
	c.updateView()

	be := c.env.Backend
	volumes, meshes := c.ordered()
	drawOne := func(obj globject.GLObject) {
		// objects may leave depth testing off when they finish
		be.Enable(gl.DepthTest)
		if err := draw3D(obj); err != nil {
			logx.Logger().Warn("overlay draw failed", "canvas", c.name, "object", obj.Name(), "error", err)
		}
	}

	if c.opts.Occlusion {
		for _, obj := range meshes {
			drawOne(obj)
		}
		for _, obj := range volumes {
			drawOne(obj)
		}
	} else {
		for _, obj := range volumes {
			be.Clear(gl.ClearDepth, c.bg)
			drawOne(obj)
		}
		for _, obj := range meshes {
			drawOne(obj)
		}
	}
	be.Disable(gl.DepthTest)

	c.highlightVertex()
	view := c.env.View
	c.annot.SetView(view.Projection, view.ModelView, c.width, c.height, view.PixelSize)
	c.annot.Draw3D()
	return nil
}

// highlightVertex marks the vertex of the selected mesh nearest to the
// display context location.
func (c *Scene3DCanvas) highlightVertex() {
	if !c.opts.ShowCursor {
		return
	}
	sel := c.env.Context.Selected()
	if sel == nil {
		return
	}
	obj, ok := c.objects[sel.ID()]
	if !ok {
		return
	}
	mesh, ok := obj.(*globject.Mesh)
	if !ok {
		return
	}
	_, v, ok := mesh.NearestVertex(c.env.Context.Location())
	if !ok {
		return
	}
	p := annotations.NewPoint(v[0], v[1], c.opts.CursorColour)
	p.Depth = &v[2]
	p.LineWidth = 5
	c.annot.Enqueue(p, false, false)
}

// Destroy releases every resource held by the canvas. It is safe to call
// more than once.
func (c *Scene3DCanvas) Destroy() { c.destroy() }
