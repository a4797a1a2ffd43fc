package globject

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

const meshCmapUnit = 0

// Mesh draws a triangle surface mesh. In 2D, the cross-section at the
// slice depth is filled using the stencil buffer, or drawn as an outline
// computed from the mesh/plane intersection.
type Mesh struct {
	base
	mopts *models.MeshOpts
	mesh  *models.Mesh

	prog *gl.Program
	flat *gl.Program
	cmap *textures.ColourMapTexture

	verts   []float32
	normals []float32
	indices []uint32
	data    []float32

	// display space vertices and their kd-tree, rebuilt on geometry
	// changes.
	display [][3]float64
	tree    *kdtree.Tree
}

// NewMesh creates a Mesh for ov.
func NewMesh(env *Env, ov models.Overlay) (*Mesh, error) {
	mesh, ok := ov.(*models.Mesh)
	if !ok {
		return nil, fmt.Errorf("overlay %s is not a mesh", ov.Name())
	}
	m := &Mesh{mesh: mesh}
	if err := m.init(env, ov, models.MeshType); err != nil {
		return nil, err
	}
	m.mopts = m.opts.(*models.MeshOpts)
	m.cmap = textures.NewColourMapTexture(env.Backend, m.name+"_cmap")
	m.onChange = func(kind ChangeKind, prop string) error {
		switch {
		case kind == TextureRefresh:
			return m.refreshData()
		case kind == GeometryRefresh:
			m.refreshGeometry()
		case prop == models.CmapProp:
			return m.setCmap(m.cmap, m.mopts.Cmap.Get(), 256, true)
		}
		return nil
	}

	m.verts = routines.Flatten(mesh.Vertices)
	m.normals = routines.Flatten(mesh.Normals())
	m.indices = make([]uint32, 0, 3*len(mesh.Indices))
	for _, tri := range mesh.Indices {
		m.indices = append(m.indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}

	var err error
	if m.prog, err = m.program("mesh"); err == nil {
		m.flat, err = m.program("flat")
	}
	if err == nil {
		err = m.setCmap(m.cmap, m.mopts.Cmap.Get(), 256, true)
	}
	if err == nil {
		err = m.refreshData()
	}
	if err != nil {
		m.Destroy()
		return nil, err
	}
	m.refreshGeometry()
	return m, nil
}

// refreshData loads the selected vertex data column, if any.
func (m *Mesh) refreshData() error {
	m.data = nil
	key := m.mopts.VertexData.Get()
	if key == "" {
		return nil
	}
	cols, ok := m.mesh.VertexData[key]
	if !ok {
		return fmt.Errorf("mesh %s has no vertex data %q", m.mesh.Name(), key)
	}
	idx := m.mopts.VertexDataIndex.Get()
	if idx < 0 || idx >= len(cols) {
		return fmt.Errorf("mesh %s: vertex data %q has no column %d", m.mesh.Name(), key, idx)
	}
	if n := len(cols[idx]); n != len(m.mesh.Vertices) {
		return fmt.Errorf("mesh %s: vertex data %q column %d has %d values, need %d",
			m.mesh.Name(), key, idx, n, len(m.mesh.Vertices))
	}
	m.data = make([]float32, len(cols[idx]))
	for i, v := range cols[idx] {
		m.data[i] = float32(v)
	}
	return nil
}

func (m *Mesh) refreshGeometry() {
	m.display = affine.TransformAll(m.mopts.VertsToDisplay(), m.mesh.Vertices)
	m.tree = newVertexTree(m.display)
}

// NearestVertex returns the index and display position of the mesh
// vertex nearest to p, and whether the mesh has any vertices.
func (m *Mesh) NearestVertex(p [3]float64) (int, [3]float64, bool) {
	if m.tree == nil {
		return 0, [3]float64{}, false
	}
	c, _ := m.tree.Nearest(vertex{P: p})
	v := c.(vertex)
	return v.Index, v.P, true
}

// Ready implements GLObject.
func (m *Mesh) Ready() bool { return !m.destroyed && m.programsReady() && m.cmap.Ready() }

func (m *Mesh) colour() models.Colour {
	c := m.mopts.Colour.Get()
	c[3] *= m.alpha()
	return c
}

func (m *Mesh) updateShader() error {
	o := m.mopts
	r := o.VertexDataRange.Get()
	return m.prog.SetAll(map[string]any{
		"cmapTexture":    int32(meshCmapUnit),
		"vertsToDisplay": affine.ToMat4(o.VertsToDisplay()),
		"colour":         vec4(m.colour()),
		"useVertexData":  m.data != nil,
		"cmapXform":      rangeXform(r[0], r[1], false),
	})
}

// PreDraw implements GLObject.
func (m *Mesh) PreDraw() error {
	if m.shaderDirty {
		if err := m.updateShader(); err != nil {
			return err
		}
		m.shaderDirty = false
	}
	m.cmap.Bind(meshCmapUnit)
	return nil
}

func (m *Mesh) vertexData() gl.VertexData {
	vd := gl.VertexData{Vertices: m.verts, Normals: m.normals, Indices: m.indices}
	if m.data != nil {
		vd.TexCoords, vd.TexComps = m.data, 1
	}
	return vd
}

// Draw2D implements GLObject.
func (m *Mesh) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if !m.visible(zpos, axes) {
		return nil
	}
	if m.mopts.Outline.Get() || m.data != nil {
		return m.drawOutline(zpos, axes, xform)
	}
	return m.drawCrossSection(zpos, axes, xform)
}

// drawOutline draws the intersection of the mesh with the slice plane as
// widened line segments.
func (m *Mesh) drawOutline(zpos float64, axes Axes, xform *mgl32.Mat4) error {
	segs := routines.MeshPlane(m.display, m.mesh.Indices, routines.AxisPlane(axes.Z(), zpos))
	if len(segs) == 0 {
		return nil
	}
	lines := make([]float32, 0, 6*len(segs))
	var cols []float32
	var cmap []models.Colour
	if m.data != nil {
		var err error
		if cmap, err = models.ColourMap(m.mopts.Cmap.Get(), 256, true); err != nil {
			return err
		}
	}
	for _, s := range segs {
		for _, p := range s.Points {
			lines = append(lines, float32(p[0]), float32(p[1]), float32(p[2]))
		}
		if cmap == nil {
			continue
		}
		// one colour per segment, from the data at its midpoint
		var val float64
		tri := m.mesh.Indices[s.Face]
		for end := 0; end < 2; end++ {
			for i := 0; i < 3; i++ {
				val += 0.5 * s.Weights[end][i] * float64(m.data[tri[i]])
			}
		}
		c := m.dataColour(cmap, val)
		for i := 0; i < 6; i++ {
			cols = append(cols, c[:]...)
		}
	}

	d := axisDir(axes.Z())
	width := float32(m.mopts.OutlineWidth.Get() * m.view().PixelSize)
	verts := routines.WidenLines(lines, width, [3]float32{float32(d[0]), float32(d[1]), float32(d[2])})

	m.flat.Load()
	err := m.flat.SetAll(map[string]any{
		"MVP":             m.mvp(xform),
		"colour":          vec4(m.colour()),
		"useVertexColour": cols != nil,
	})
	if err != nil {
		return err
	}
	defer m.flat.Unload()
	return m.backend().Draw(gl.Triangles, gl.VertexData{Vertices: verts, Colours: cols})
}

func (m *Mesh) dataColour(cmap []models.Colour, val float64) [4]float32 {
	r := m.mopts.VertexDataRange.Get()
	span := r[1] - r[0]
	if span == 0 {
		span = 1
	}
	pos := math.Max(0, math.Min(1, (val-r[0])/span))
	c := cmap[int(math.Round(pos*float64(len(cmap)-1)))]
	return [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(m.alpha())}
}

// drawCrossSection fills the cross-section of a closed mesh at zpos. The
// mesh is clipped to the half space below the plane and drawn twice into
// the stencil buffer, incrementing on front faces and decrementing on
// back faces, so that stencil values inside the cross-section are
// non-zero. A quad covering the mesh bounds is then drawn through the
// stencil.
func (m *Mesh) drawCrossSection(zpos float64, axes Axes, xform *mgl32.Mat4) error {
	be := m.backend()
	plane := routines.AxisPlane(axes.Z(), zpos).Equation()

	m.prog.Load()
	err := m.prog.SetAll(map[string]any{
		"MVP":          m.mvp(xform),
		"clipPlane":    mgl32.Vec4{float32(plane[0]), float32(plane[1]), float32(plane[2]), float32(-plane[3])},
		"useClipPlane": true,
		"lighting":     false,
	})
	if err != nil {
		return err
	}

	be.Enable(gl.StencilTest)
	be.Enable(gl.CullFace)
	be.Clear(gl.ClearStencil, [4]float32{})
	be.ColorMask(false, false, false, false)
	be.DepthMask(false)
	be.StencilFunc(gl.Always, 0, 0xff)

	be.CullFace(gl.BackFace)
	be.StencilOp(gl.Keep, gl.Keep, gl.IncrWrap)
	err = be.Draw(gl.Triangles, m.vertexData())
	if err == nil {
		be.CullFace(gl.FrontFace)
		be.StencilOp(gl.Keep, gl.Keep, gl.DecrWrap)
		err = be.Draw(gl.Triangles, m.vertexData())
	}
	be.Disable(gl.CullFace)
	be.ColorMask(true, true, true, true)
	be.DepthMask(true)
	m.prog.Unload()
	if err != nil {
		be.Disable(gl.StencilTest)
		return err
	}

	b := m.Bounds()
	quad := routines.SliceVertices(b.Lo, b.Hi, axes.Z(), zpos)
	be.StencilFunc(gl.NotEqual, 0, 0xff)
	be.StencilOp(gl.Keep, gl.Keep, gl.Keep)
	m.flat.Load()
	err = m.flat.SetAll(map[string]any{
		"MVP":             m.mvp(xform),
		"colour":          vec4(m.colour()),
		"useVertexColour": false,
	})
	if err == nil {
		err = be.Draw(gl.Triangles, gl.VertexData{Vertices: routines.Flatten(quad)})
	}
	m.flat.Unload()
	be.Disable(gl.StencilTest)
	return err
}

// DrawAll implements GLObject.
func (m *Mesh) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return drawLoop(m, axes, zposes, xforms)
}

// Draw3D implements Drawer3D.
func (m *Mesh) Draw3D(xform *mgl32.Mat4, bbox *models.Bounds) error {
	be := m.backend()
	m.prog.Load()
	defer m.prog.Unload()
	err := m.prog.SetAll(map[string]any{
		"MVP":          m.mvp(xform),
		"useClipPlane": false,
		"lighting":     !m.mopts.FlatShading.Get(),
		"lightPos":     vec3(m.view().LightPos),
	})
	if err != nil {
		return err
	}
	be.Enable(gl.DepthTest)
	defer be.Disable(gl.DepthTest)
	return be.Draw(gl.Triangles, m.vertexData())
}

// PostDraw implements GLObject.
func (m *Mesh) PostDraw() error {
	m.cmap.Unbind(meshCmapUnit)
	return nil
}

// Destroy implements GLObject.
func (m *Mesh) Destroy() {
	if m.destroyBase() {
		m.cmap.Destroy()
		m.tree = nil
	}
}
