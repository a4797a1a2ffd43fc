package stl

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
)

// sphereImage creates a size^3 image which is 1 inside a sphere of radius
// size/4 and 0 outside.
func sphereImage(t testing.TB, size int) *models.Image {
	t.Helper()
	data := make([]float64, size*size*size)
	radius := float64(size) / 4
	centre := float64(size) / 2
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx, dy, dz := float64(x)-centre, float64(y)-centre, float64(z)-centre
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					data[z*size*size+y*size+x] = 1
				}
			}
		}
	}
	img, err := models.NewImage("sphere", [4]int{size, size, size, 1}, [3]float64{1, 1, 1}, models.Float32, data, nil)
	require.NoError(t, err)
	return img
}

// cornerImage creates a 2x2x2 image with a single non-zero corner.
func cornerImage(t *testing.T, pixdim [3]float64) *models.Image {
	t.Helper()
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}
	img, err := models.NewImage("corner", [4]int{2, 2, 2, 1}, pixdim, models.Float32, data, nil)
	require.NoError(t, err)
	return img
}

func TestIsosurfaceSphere(t *testing.T) {
	img := sphereImage(t, 20)
	tris, err := Isosurface(img, 0, 0.5)
	require.NoError(t, err)
	require.Greater(t, len(tris), 100)

	centre := float32(10)
	for _, tri := range tris {
		var c [3]float32
		for _, v := range tri.Vertices {
			for i := range 3 {
				c[i] += v[i] / 3
			}
		}
		d := [3]float32{c[0] - centre, c[1] - centre, c[2] - centre}
		l := float32(math.Sqrt(float64(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])))
		d = [3]float32{d[0] / l, d[1] / l, d[2] / l}
		dot := d[0]*tri.Normal[0] + d[1]*tri.Normal[1] + d[2]*tri.Normal[2]
		assert.Greater(t, dot, float32(-0.5), "normal points into the sphere")
	}
}

func TestIsosurfaceInterpolation(t *testing.T) {
	tris, err := Isosurface(cornerImage(t, [3]float64{1, 1, 1}), 0, 0.5)
	require.NoError(t, err)
	// one triangle per tetrahedron, all around the single inside corner
	require.Len(t, tris, 6)

	for _, tri := range tris {
		for _, v := range tri.Vertices {
			interpolated := false
			for _, c := range v {
				assert.Contains(t, []float32{0, 0.5}, c)
				interpolated = interpolated || c == 0.5
			}
			assert.True(t, interpolated)
		}
		// away from the inside corner at the origin
		c := tri.Vertices[0]
		assert.Positive(t, c[0]*tri.Normal[0]+c[1]*tri.Normal[1]+c[2]*tri.Normal[2])
	}
}

func TestIsosurfaceWorldCoordinates(t *testing.T) {
	pixdim := [3]float64{2.5, 1.5, 3}
	unit, err := Isosurface(cornerImage(t, [3]float64{1, 1, 1}), 0, 0.5)
	require.NoError(t, err)
	scaled, err := Isosurface(cornerImage(t, pixdim), 0, 0.5)
	require.NoError(t, err)
	require.Len(t, scaled, len(unit))

	for i := range unit {
		for v := range 3 {
			for j := range 3 {
				assert.InDelta(t, float64(unit[i].Vertices[v][j])*pixdim[j], scaled[i].Vertices[v][j], 1e-5)
			}
		}
	}
}

func TestIsosurfaceEdgeCases(t *testing.T) {
	img := cornerImage(t, [3]float64{1, 1, 1})
	tris, err := Isosurface(img, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, tris)

	_, err = Isosurface(img, 1, 0.5)
	assert.Error(t, err)

	m, err := IsosurfaceMesh(sphereImage(t, 12), 0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "sphere_0.5", m.Name())
	assert.NotEmpty(t, m.Indices)
	assert.Less(t, len(m.Vertices), 3*len(m.Indices))
}

func TestWriteRead(t *testing.T) {
	tris := []Triangle{{
		Normal:   [3]float32{0, 0, 1},
		Vertices: [3][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tris))
	assert.Equal(t, 80+4+50, buf.Len())

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, tris, got)
}

func TestBinaryWithSolidHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Triangle{{Vertices: [3][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}}}))
	data := buf.Bytes()
	copy(data, "solid exported")

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, [3]float32{1, 0, 0}, got[0].Vertices[1])
}

func TestReadASCII(t *testing.T) {
	src := `solid cube
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 0 1 0
      vertex 1 1 0
    endloop
  endfacet
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 1 0
      vertex 1 0 0
    endloop
  endfacet
endsolid cube
`
	tris, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, tris, 2)
	assert.Equal(t, [3]float32{0, 0, -1}, tris[0].Normal)
	assert.Equal(t, [3]float32{1, 0, 0}, tris[1].Vertices[2])

	m, err := ToMesh("square", tris)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, m.Indices)

	_, err = Read(strings.NewReader("solid bad\nfacet normal 0 0 1\nvertex 0 0\n"))
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Read(strings.NewReader("not an stl file"))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestSaveLoadMesh(t *testing.T) {
	verts := [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	faces := [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	m, err := models.NewMesh("tetra", verts, faces)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tetra.stl")
	require.NoError(t, Save(path, m))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(80+4+4*50), info.Size())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tetra", got.Name())
	require.Len(t, got.Vertices, len(verts))
	require.Len(t, got.Indices, len(faces))
	for i, face := range faces {
		for k := range 3 {
			assert.Equal(t, verts[face[k]], got.Vertices[got.Indices[i][k]])
		}
	}

	// the first face winds towards -z
	tris := FromMesh(m)
	assert.InDelta(t, -1, tris[0].Normal[2], 1e-6)
}

func BenchmarkIsosurface(b *testing.B) {
	img := sphereImage(b, 16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Isosurface(img, 0, 0.5); err != nil {
			b.Fatal(err)
		}
	}
}
