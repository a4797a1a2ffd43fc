package routines

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
)

func TestPreserveAspectRatio(t *testing.T) {
	xmin, xmax, ymin, ymax := PreserveAspectRatio(200, 100, 0, 10, 0, 10)
	assert.InDelta(t, -5, xmin, 1e-9)
	assert.InDelta(t, 15, xmax, 1e-9)
	assert.Equal(t, 0.0, ymin)
	assert.Equal(t, 10.0, ymax)

	xmin, xmax, ymin, ymax = PreserveAspectRatio(100, 200, 0, 10, 0, 10)
	assert.Equal(t, 0.0, xmin)
	assert.Equal(t, 10.0, xmax)
	assert.InDelta(t, -5, ymin, 1e-9)
	assert.InDelta(t, 15, ymax, 1e-9)
}

func TestOrtho2DMapsBoundsToClipSpace(t *testing.T) {
	proj, mv := Ortho2D(2, 0, 10, 0, 20, -5, 5, false, false)
	mvp := proj.Mul4(mv)

	lo := mvp.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	hi := mvp.Mul4x1(mgl32.Vec4{10, 20, 0, 1})
	assert.InDelta(t, -1, lo.X(), 1e-6)
	assert.InDelta(t, -1, lo.Y(), 1e-6)
	assert.InDelta(t, 1, hi.X(), 1e-6)
	assert.InDelta(t, 1, hi.Y(), 1e-6)

	// both depth bounds are inside the clip volume
	for _, z := range []float32{-5, 5} {
		c := mvp.Mul4x1(mgl32.Vec4{5, 5, z, 1})
		assert.True(t, c.Z() > -1 && c.Z() < 1, "z=%v clip=%v", z, c.Z())
	}

	// sagittal: display y is horizontal, display z vertical
	proj, mv = Ortho2D(0, 0, 10, 0, 20, -5, 5, false, false)
	c := proj.Mul4(mv).Mul4x1(mgl32.Vec4{0, 10, 20, 1})
	assert.InDelta(t, 1, c.X(), 1e-6)
	assert.InDelta(t, 1, c.Y(), 1e-6)

	_, mv = Ortho2D(2, 0, 10, 0, 20, -5, 5, true, false)
	c = mv.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 10, c.X(), 1e-6)
}

func TestSliceVertices(t *testing.T) {
	verts := SliceVertices([3]float64{0, 1, 2}, [3]float64{10, 11, 12}, 1, 5)
	require.Len(t, verts, 6)
	for _, v := range verts {
		assert.Equal(t, 5.0, v[1])
		assert.Contains(t, []float64{0, 10}, v[0])
		assert.Contains(t, []float64{2, 12}, v[2])
	}
}

func TestSlice2DTexCoords(t *testing.T) {
	x := affine.ScaleOffset([3]float64{2, 2, 2}, [3]float64{0, 0, 0})
	verts, vox, tex := Slice2D([3]int{4, 4, 4}, x, 2, 3, nil)
	require.Len(t, verts, 6)
	// bounds span voxel corners: [-1, 7] in display space
	assert.InDelta(t, -1, verts[0][0], 1e-9)
	assert.InDelta(t, 7, verts[5][0], 1e-9)
	assert.InDelta(t, 1.5, vox[0][2], 1e-9)
	assert.InDelta(t, 0, tex[0][0], 1e-9)
	assert.InDelta(t, 1, tex[5][1], 1e-9)
	assert.InDelta(t, 0.5, tex[0][2], 1e-9)
}

func TestBoundingBox(t *testing.T) {
	verts := BoundingBox([3]float64{0, 0, 0}, [3]float64{1, 2, 3})
	require.Len(t, verts, 24)
	for i := 0; i < 24; i += 2 {
		a, b := verts[i], verts[i+1]
		diff := 0
		for ax := 0; ax < 3; ax++ {
			if a[ax] != b[ax] {
				diff++
			}
		}
		assert.Equal(t, 1, diff, "edge %d is not axis aligned", i/2)
	}
}

func TestPointGrid(t *testing.T) {
	pts := PointGrid([3]int{4, 6, 8}, 1, 2, 2)
	assert.Len(t, pts, 2*4)
	for _, p := range pts {
		assert.Equal(t, 2, p[1])
	}
	assert.Nil(t, PointGrid([3]int{4, 6, 8}, 1, 6, 1))
}

func TestSliceVoxel(t *testing.T) {
	x := affine.ScaleOffset([3]float64{0.5, 0.5, 0.5}, [3]float64{0, 0, 0})
	i, ok := SliceVoxel([3]int{4, 4, 4}, x, 2, 3.2, [3]float64{})
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = SliceVoxel([3]int{4, 4, 4}, x, 2, 20, [3]float64{})
	assert.False(t, ok)
}

func TestWidenLines(t *testing.T) {
	quads := WidenLines([]float32{0, 0, 0, 1, 0, 0}, 2, [3]float32{0, 0, 1})
	require.Len(t, quads, 18)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, 1, math.Abs(float64(quads[i*3+1])), 1e-6)
		assert.Equal(t, float32(0), quads[i*3+2])
	}
}

func TestMeshPlaneCases(t *testing.T) {
	verts := [][3]float64{
		{0, 0, -1}, {1, 0, 1}, {0, 1, 1}, // straddles, lone vertex below
		{0, 0, 0}, {1, 0, 0}, {0, 1, 2}, // one edge on the plane
		{0, 0, 0}, {1, 0, -1}, {0, 1, 1}, // one vertex on the plane, others opposite
		{0, 0, 1}, {1, 0, 2}, {0, 1, 3}, // misses
		{0, 0, 0}, {1, 0, 1}, {0, 1, 1}, // touches at a vertex
		{0, 0, 1}, {1, 0, 1}, {0, 1, -1}, // straddles, lone vertex below, two above
	}
	faces := [][3]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9, 10, 11}, {12, 13, 14}, {15, 16, 17}}
	segs := MeshPlane(verts, faces, AxisPlane(2, 0))
	require.Len(t, segs, 4)

	assert.Equal(t, []int{0, 1, 2, 5}, []int{segs[0].Face, segs[1].Face, segs[2].Face, segs[3].Face})
	for _, s := range segs {
		for e := 0; e < 2; e++ {
			assert.InDelta(t, 0, s.Points[e][2], 1e-9)
			w := s.Weights[e]
			assert.InDelta(t, 1, w[0]+w[1]+w[2], 1e-9)

			// weights reconstruct the end point
			f := faces[s.Face]
			var p [3]float64
			for i := 0; i < 3; i++ {
				for ax := 0; ax < 3; ax++ {
					p[ax] += w[i] * verts[f[i]][ax]
				}
			}
			assert.InDeltaSlice(t, s.Points[e][:], p[:], 1e-9)
		}
	}

	assert.Equal(t, [3]float64{0.5, 0, 0}, segs[0].Points[0])
	assert.Equal(t, [3]float64{0, 0, 0}, segs[1].Points[0])
	assert.Equal(t, [3]float64{1, 0, 0}, segs[1].Points[1])
}

func TestPlaneHelpers(t *testing.T) {
	p := PlaneFromPoints([3]float64{0, 0, 2}, [3]float64{1, 0, 2}, [3]float64{0, 1, 2})
	eq := p.Equation()
	assert.InDeltaSlice(t, []float64{0, 0, 1, 2}, eq[:], 1e-9)

	pt, tt, ok := LinePlane([3]float64{0, 0, 0}, [3]float64{0, 0, 4}, p)
	require.True(t, ok)
	assert.InDelta(t, 0.5, tt, 1e-9)
	assert.Equal(t, [3]float64{0, 0, 2}, pt)

	_, _, ok = LinePlane([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, p)
	assert.False(t, ok)
}

func TestUnitSphere(t *testing.T) {
	verts, angles, idx := UnitSphere(8)
	assert.Len(t, verts, 64)
	assert.Len(t, angles, 64)
	assert.Len(t, idx, 7*7*6)
	for _, v := range verts {
		assert.InDelta(t, 1, math.Sqrt(v[0]*v[0]+v[1]*v[1]+v[2]*v[2]), 1e-9)
	}
	for _, i := range idx {
		assert.Less(t, int(i), 64)
	}
}

func TestBoxTriangles(t *testing.T) {
	lo, hi := [3]float64{-1, -2, -3}, [3]float64{1, 2, 3}
	verts := BoxTriangles(lo, hi)
	require.Len(t, verts, 36)
	for _, v := range verts {
		for ax := 0; ax < 3; ax++ {
			assert.True(t, v[ax] == lo[ax] || v[ax] == hi[ax])
		}
	}
	// every face lies on one side of the box
	for f := 0; f < 6; f++ {
		face := verts[f*6 : f*6+6]
		fixed := 0
		for ax := 0; ax < 3; ax++ {
			same := true
			for _, v := range face {
				same = same && v[ax] == face[0][ax]
			}
			if same {
				fixed++
			}
		}
		assert.Equal(t, 1, fixed, "face %d", f)
	}
}
