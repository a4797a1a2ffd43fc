// Package routines contains stateless geometry and transformation helpers
// used by GLObjects and canvases: projection and camera setup, slice and
// bounding box vertex generation, point grids and plane maths.
package routines

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
)

// OtherAxes returns the two axes which are not zax.
func OtherAxes(zax int) (xax, yax int) {
	switch zax {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

// PreserveAspectRatio grows the x or y display range so that it has the
// same aspect ratio as a width x height pixel canvas.
func PreserveAspectRatio(width, height int, xmin, xmax, ymin, ymax float64) (float64, float64, float64, float64) {
	if width <= 0 || height <= 0 {
		return xmin, xmax, ymin, ymax
	}
	xlen := xmax - xmin
	ylen := ymax - ymin
	if xlen == 0 || ylen == 0 {
		return xmin, xmax, ymin, ymax
	}

	canvasRatio := float64(width) / float64(height)
	dispRatio := xlen / ylen

	if canvasRatio > dispRatio {
		newlen := ylen * canvasRatio
		xmin -= (newlen - xlen) / 2
		xmax += (newlen - xlen) / 2
	} else if canvasRatio < dispRatio {
		newlen := xlen / canvasRatio
		ymin -= (newlen - ylen) / 2
		ymax += (newlen - ylen) / 2
	}
	return xmin, xmax, ymin, ymax
}

// Ortho2D returns the projection and model-view matrices for a 2D view of
// the display coordinate system looking down zax. The horizontal and
// vertical display ranges are [xmin, xmax] and [ymin, ymax], and the depth
// range is [zmin, zmax].
func Ortho2D(zax int, xmin, xmax, ymin, ymax, zmin, zmax float64, invertX, invertY bool) (proj, mv mgl32.Mat4) {
	xax, yax := OtherAxes(zax)

	// depth limits are padded so that geometry on the bounds is not clipped
	zlen := math.Max(zmax-zmin, 1)
	proj = mgl32.Ortho(float32(xmin), float32(xmax), float32(ymin), float32(ymax),
		float32(-(zmax + zlen)), float32(-(zmin - zlen)))

	// model-view maps the display x/y/z axes onto the screen axes
	var m mgl32.Mat4
	m.SetRow(0, axisRow(xax, invertX, xmin+xmax))
	m.SetRow(1, axisRow(yax, invertY, ymin+ymax))
	m.SetRow(2, axisRow(zax, false, 0))
	m.SetRow(3, mgl32.Vec4{0, 0, 0, 1})
	return proj, m
}

func axisRow(ax int, invert bool, span float64) mgl32.Vec4 {
	var r mgl32.Vec4
	if invert {
		r[ax] = -1
		r[3] = float32(span)
	} else {
		r[ax] = 1
	}
	return r
}

// LookAt returns a camera matrix looking from eye at centre.
func LookAt(eye, centre, up [3]float64) mgl32.Mat4 {
	return mgl32.LookAtV(vec3(eye), vec3(centre), vec3(up))
}

// Rotate returns a rotation of angle degrees about axis.
func Rotate(angle float64, axis [3]float64) mgl32.Mat4 {
	return mgl32.HomogRotate3D(mgl32.DegToRad(float32(angle)), vec3(axis).Normalize())
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// SliceVertices generates a 2D slice through a display bounding box at
// depth zpos along zax: six vertices describing two triangles which cover
// the box's extent along the other two axes.
func SliceVertices(lo, hi [3]float64, zax int, zpos float64) [][3]float64 {
	xax, yax := OtherAxes(zax)
	corner := func(x, y float64) [3]float64 {
		var v [3]float64
		v[xax], v[yax], v[zax] = x, y, zpos
		return v
	}
	bl := corner(lo[xax], lo[yax])
	br := corner(hi[xax], lo[yax])
	tl := corner(lo[xax], hi[yax])
	tr := corner(hi[xax], hi[yax])
	return [][3]float64{bl, br, tl, tl, br, tr}
}

// Slice2D generates the vertices, voxel coordinates and 3D texture
// coordinates of a slice through an image at depth zpos along zax. The
// slice covers the image's display bounds, optionally clipped to bbox.
func Slice2D(shape [3]int, voxToDisplay *mat.Dense, zax int, zpos float64, bbox *models.Bounds) (verts, voxCoords, texCoords [][3]float64) {
	lo, hi := affine.VoxelBounds(shape, voxToDisplay)
	if bbox != nil {
		for ax := 0; ax < 3; ax++ {
			lo[ax] = math.Max(lo[ax], bbox.Lo[ax])
			hi[ax] = math.Min(hi[ax], bbox.Hi[ax])
		}
	}
	verts = SliceVertices(lo, hi, zax, zpos)
	displayToVox, err := affine.Invert(voxToDisplay)
	if err != nil {
		displayToVox = affine.Identity()
	}
	voxCoords = affine.TransformAll(displayToVox, verts)
	texCoords = VoxToTex(voxCoords, shape)
	return verts, voxCoords, texCoords
}

// VoxToTex converts voxel coordinates to texture coordinates, where voxel
// centres lie at (i + 0.5) / n.
func VoxToTex(vox [][3]float64, shape [3]int) [][3]float64 {
	out := make([][3]float64, len(vox))
	for i, v := range vox {
		for ax := 0; ax < 3; ax++ {
			out[i][ax] = (v[ax] + 0.5) / float64(max(shape[ax], 1))
		}
	}
	return out
}

// BoundingBox returns the 12 edges of the box [lo, hi] as 24 line vertices.
func BoundingBox(lo, hi [3]float64) [][3]float64 {
	c := func(i, j, k int) [3]float64 {
		pick := func(sel int, ax int) float64 {
			if sel == 0 {
				return lo[ax]
			}
			return hi[ax]
		}
		return [3]float64{pick(i, 0), pick(j, 1), pick(k, 2)}
	}
	var out [][3]float64
	edges := [][2][3]int{
		{{0, 0, 0}, {1, 0, 0}}, {{0, 1, 0}, {1, 1, 0}}, {{0, 0, 1}, {1, 0, 1}}, {{0, 1, 1}, {1, 1, 1}},
		{{0, 0, 0}, {0, 1, 0}}, {{1, 0, 0}, {1, 1, 0}}, {{0, 0, 1}, {0, 1, 1}}, {{1, 0, 1}, {1, 1, 1}},
		{{0, 0, 0}, {0, 0, 1}}, {{1, 0, 0}, {1, 0, 1}}, {{0, 1, 0}, {0, 1, 1}}, {{1, 1, 0}, {1, 1, 1}},
	}
	for _, e := range edges {
		out = append(out, c(e[0][0], e[0][1], e[0][2]), c(e[1][0], e[1][1], e[1][2]))
	}
	return out
}

// PointGrid returns the voxels of a 2D slice through an image of the given
// shape, at voxel depth zvox along zax, taking every step'th voxel along
// the other two axes. It returns nil if zvox is out of bounds.
func PointGrid(shape [3]int, zax, zvox, step int) [][3]int {
	if zvox < 0 || zvox >= shape[zax] {
		return nil
	}
	step = max(step, 1)
	xax, yax := OtherAxes(zax)
	var out [][3]int
	for y := 0; y < shape[yax]; y += step {
		for x := 0; x < shape[xax]; x += step {
			var v [3]int
			v[xax], v[yax], v[zax] = x, y, zvox
			out = append(out, v)
		}
	}
	return out
}

// SliceVoxel returns the voxel coordinate along zax of the slice at display
// depth zpos, and whether that slice is inside the image.
func SliceVoxel(shape [3]int, displayToVox *mat.Dense, zax int, zpos float64, centre [3]float64) (int, bool) {
	p := centre
	p[zax] = zpos
	v := affine.Transform(displayToVox, p)
	// voxel index of the plane passing through p, rounding half up
	i := int(math.Floor(v[zax] + 0.5))
	return i, i >= 0 && i < shape[zax]
}

// Flatten converts vertices to a flat float32 array.
func Flatten(verts [][3]float64) []float32 {
	out := make([]float32, 0, 3*len(verts))
	for _, v := range verts {
		out = append(out, float32(v[0]), float32(v[1]), float32(v[2]))
	}
	return out
}

// WidenLines turns each line segment, given as pairs of flat vertices,
// into a quad of two triangles with the given width, facing a camera
// looking along the view axis. Degenerate segments produce degenerate
// quads.
func WidenLines(lines []float32, width float32, view [3]float32) []float32 {
	nsegs := len(lines) / 6
	out := make([]float32, 0, nsegs*18)
	half := width / 2

	for i := 0; i < nsegs; i++ {
		s := lines[i*6 : i*6+3]
		e := lines[i*6+3 : i*6+6]
		d := [3]float32{e[0] - s[0], e[1] - s[1], e[2] - s[2]}

		// perpendicular to both the segment and the view direction
		p := [3]float32{
			d[1]*view[2] - d[2]*view[1],
			d[2]*view[0] - d[0]*view[2],
			d[0]*view[1] - d[1]*view[0],
		}
		n := math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		if n > 0 {
			for j := range p {
				p[j] = p[j] / n * half
			}
		}

		v := func(b []float32, sign float32) (float32, float32, float32) {
			return b[0] + sign*p[0], b[1] + sign*p[1], b[2] + sign*p[2]
		}
		s0x, s0y, s0z := v(s, -1)
		s1x, s1y, s1z := v(s, 1)
		e0x, e0y, e0z := v(e, -1)
		e1x, e1y, e1z := v(e, 1)
		out = append(out,
			s0x, s0y, s0z, s1x, s1y, s1z, e0x, e0y, e0z,
			e0x, e0y, e0z, s1x, s1y, s1z, e1x, e1y, e1z,
		)
	}
	return out
}

// Circle returns npoints points on a circle of radius r centred at c, in
// the plane of the given axes.
func Circle(c [3]float64, rx, ry float64, xax, yax, npoints int) [][3]float64 {
	out := make([][3]float64, npoints)
	for i := range out {
		a := 2 * math32.Pi * float32(i) / float32(npoints)
		p := c
		p[xax] += rx * float64(math32.Cos(a))
		p[yax] += ry * float64(math32.Sin(a))
		out[i] = p
	}
	return out
}

// BoxTriangles returns the six faces of the box [lo, hi] as 36 triangle
// vertices, wound counter-clockwise when viewed from outside.
func BoxTriangles(lo, hi [3]float64) [][3]float64 {
	c := [8][3]float64{}
	for i := range c {
		for ax := 0; ax < 3; ax++ {
			if i&(1<<ax) == 0 {
				c[i][ax] = lo[ax]
			} else {
				c[i][ax] = hi[ax]
			}
		}
	}
	faces := [6][4]int{
		{0, 2, 6, 4}, // -x
		{1, 5, 7, 3}, // +x
		{0, 4, 5, 1}, // -y
		{2, 3, 7, 6}, // +y
		{0, 1, 3, 2}, // -z
		{4, 6, 7, 5}, // +z
	}
	out := make([][3]float64, 0, 36)
	for _, f := range faces {
		out = append(out, c[f[0]], c[f[1]], c[f[2]], c[f[0]], c[f[2]], c[f[3]])
	}
	return out
}
