package stl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
)

// cubeCorners are the voxel offsets of the eight corners of a cell,
// indexed x + 2y + 4z.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// cubeTetrahedra splits a cell into six tetrahedra around the 0-7
// diagonal, so that neighbouring cells share faces.
var cubeTetrahedra = [6][4]int{
	{0, 1, 3, 7}, {0, 3, 2, 7}, {0, 2, 6, 7},
	{0, 6, 4, 7}, {0, 4, 5, 7}, {0, 5, 1, 7},
}

type sample struct {
	p [3]float64
	v float64
}

// Isosurface extracts the surface where a volume of img crosses level,
// using marching tetrahedra. Vertices are in world coordinates and
// normals point away from values above level.
func Isosurface(img *models.Image, volume int, level float64) ([]Triangle, error) {
	if volume < 0 || volume >= img.NumVolumes() {
		return nil, fmt.Errorf("stl: %s has no volume %d", img.Name(), volume)
	}
	shape := img.Shape3()
	xform := img.VoxToWorld()

	var tris []Triangle
	var cell [8]sample
	for z := 0; z < shape[2]-1; z++ {
		for y := 0; y < shape[1]-1; y++ {
			for x := 0; x < shape[0]-1; x++ {
				for i, off := range cubeCorners {
					vx, vy, vz := x+off[0], y+off[1], z+off[2]
					cell[i] = sample{
						p: [3]float64{float64(vx), float64(vy), float64(vz)},
						v: img.Value(vx, vy, vz, volume),
					}
				}
				for _, tet := range cubeTetrahedra {
					tris = polygonise(tris, [4]sample{cell[tet[0]], cell[tet[1]], cell[tet[2]], cell[tet[3]]}, level)
				}
			}
		}
	}
	// a reflecting transform reverses the winding
	flip := mat.Det(xform) < 0
	for i := range tris {
		if flip {
			tris[i].Vertices[1], tris[i].Vertices[2] = tris[i].Vertices[2], tris[i].Vertices[1]
		}
		for v, p := range tris[i].Vertices {
			w := affine.Transform(xform, [3]float64{float64(p[0]), float64(p[1]), float64(p[2])})
			tris[i].Vertices[v] = [3]float32{float32(w[0]), float32(w[1]), float32(w[2])}
		}
		tris[i].ComputeNormal()
	}
	return tris, nil
}

// IsosurfaceMesh extracts an isosurface as a Mesh overlay.
func IsosurfaceMesh(img *models.Image, volume int, level float64) (*models.Mesh, error) {
	tris, err := Isosurface(img, volume, level)
	if err != nil {
		return nil, err
	}
	return ToMesh(fmt.Sprintf("%s_%g", img.Name(), level), tris)
}

func crossing(a, b sample, level float64) [3]float32 {
	t := 0.5
	if d := b.v - a.v; d != 0 {
		t = (level - a.v) / d
	}
	var p [3]float32
	for i := range 3 {
		p[i] = float32(a.p[i] + t*(b.p[i]-a.p[i]))
	}
	return p
}

// polygonise appends the triangles of one tetrahedron, wound so that the
// face normal points from the inside corners to the outside corners.
func polygonise(tris []Triangle, tet [4]sample, level float64) []Triangle {
	var in, out []sample
	for _, s := range tet {
		if s.v >= level {
			in = append(in, s)
		} else {
			out = append(out, s)
		}
	}
	var faces [][3][3]float32
	switch len(in) {
	case 1:
		a := in[0]
		faces = append(faces, [3][3]float32{crossing(a, out[0], level), crossing(a, out[1], level), crossing(a, out[2], level)})
	case 3:
		a := out[0]
		faces = append(faces, [3][3]float32{crossing(in[0], a, level), crossing(in[1], a, level), crossing(in[2], a, level)})
	case 2:
		ac := crossing(in[0], out[0], level)
		ad := crossing(in[0], out[1], level)
		bd := crossing(in[1], out[1], level)
		bc := crossing(in[1], out[0], level)
		faces = append(faces, [3][3]float32{ac, ad, bd}, [3][3]float32{ac, bd, bc})
	default:
		return tris
	}

	dir := centroid(out)
	ci := centroid(in)
	for i := range dir {
		dir[i] -= ci[i]
	}
	for _, f := range faces {
		t := Triangle{Vertices: f}
		t.ComputeNormal()
		if float64(t.Normal[0])*dir[0]+float64(t.Normal[1])*dir[1]+float64(t.Normal[2])*dir[2] < 0 {
			t.Vertices[1], t.Vertices[2] = t.Vertices[2], t.Vertices[1]
		}
		tris = append(tris, t)
	}
	return tris
}

func centroid(ss []sample) [3]float64 {
	var c [3]float64
	for _, s := range ss {
		for i := range 3 {
			c[i] += s.p[i] / float64(len(ss))
		}
	}
	return c
}
