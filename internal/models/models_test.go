package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
)

// createTestImage creates an image whose voxel values follow pattern
func createTestImage(t *testing.T, shape [4]int, pattern func(x, y, z, v int) float64) *Image {
	t.Helper()
	if shape[3] == 0 {
		shape[3] = 1
	}
	data := make([]float64, shape[0]*shape[1]*shape[2]*shape[3])
	i := 0
	for v := 0; v < shape[3]; v++ {
		for z := 0; z < shape[2]; z++ {
			for y := 0; y < shape[1]; y++ {
				for x := 0; x < shape[0]; x++ {
					data[i] = pattern(x, y, z, v)
					i++
				}
			}
		}
	}
	img, err := NewImage("test", shape, [3]float64{1, 1, 1}, Float32, data, nil)
	require.NoError(t, err)
	return img
}

func TestNewImageShapeMismatch(t *testing.T) {
	_, err := NewImage("bad", [4]int{2, 2, 2, 1}, [3]float64{1, 1, 1}, Uint8, make([]float64, 7), nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestImageIndexingAndBounds(t *testing.T) {
	img := createTestImage(t, [4]int{4, 3, 2, 2}, func(x, y, z, v int) float64 {
		return float64(x + 10*y + 100*z + 1000*v)
	})
	assert.Equal(t, 2, img.NumVolumes())
	assert.Equal(t, 1113.0, img.Value(3, 1, 1, 1))
	assert.Len(t, img.Volume(1), 24)
	assert.Equal(t, 1000.0, img.Volume(1)[0])

	b := img.Bounds()
	assert.Equal(t, [3]float64{-0.5, -0.5, -0.5}, b.Lo)
	assert.Equal(t, [3]float64{3.5, 2.5, 1.5}, b.Hi)
	assert.Equal(t, [3]int{3, 2, 1}, img.WorldToVoxel([3]float64{3.2, 1.9, 0.6}))
}

func TestLabelValue(t *testing.T) {
	img := createTestImage(t, [4]int{2, 2, 2, 1}, func(x, y, z, v int) float64 { return float64(x) + 0.9 })
	assert.Equal(t, 2, img.LabelValue([3]int{1, 0, 0}, 0))
	assert.Equal(t, 0, img.LabelValue([3]int{5, 0, 0}, 0))
}

func TestRobustRangeIgnoresOutliers(t *testing.T) {
	img := createTestImage(t, [4]int{10, 10, 1, 1}, func(x, y, z, v int) float64 {
		if x == 0 && y == 0 {
			return 10000
		}
		return float64(y*10+x) / 100
	})
	lo, hi := img.RobustRange()
	_, dhi := img.DataRange()
	assert.Equal(t, 10000.0, dhi)
	assert.Less(t, hi, 1.0)
	assert.Greater(t, lo, 0.0)
}

func TestBoundsUnion(t *testing.T) {
	a := Bounds{Lo: [3]float64{0, 0, 0}, Hi: [3]float64{1, 1, 1}}
	b := Bounds{Lo: [3]float64{-1, 0.5, 0}, Hi: [3]float64{0.5, 2, 1}}
	u := EmptyBounds().Union(a).Union(b)
	assert.Equal(t, Bounds{Lo: [3]float64{-1, 0, 0}, Hi: [3]float64{1, 2, 1}}, u)
	assert.True(t, EmptyBounds().Empty())
	assert.True(t, u.ContainsAlong(2, 1))
	assert.False(t, u.ContainsAlong(2, 1.01))
}

func TestMeshValidation(t *testing.T) {
	_, err := NewMesh("bad", [][3]float64{{0, 0, 0}}, [][3]int{{0, 1, 2}})
	assert.Error(t, err)

	m, err := NewMesh("tri", [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, [][3]int{{0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0, 0, 1}, m.Normals()[0])
	assert.Error(t, m.AddVertexData("thickness", [][]float64{{1, 2}}))
	assert.NoError(t, m.AddVertexData("thickness", [][]float64{{1, 2, 3}}))
}

func TestColourMap(t *testing.T) {
	cmap, err := ColourMap("greyscale", 3, true)
	require.NoError(t, err)
	assert.Equal(t, RGB(0.5, 0.5, 0.5), cmap[1])

	_, err = ColourMap("nope", 3, true)
	assert.Error(t, err)
}

func TestLookupTable(t *testing.T) {
	lut := RandomLookupTable("random", 3)
	assert.Equal(t, 3, lut.Max())
	assert.Len(t, lut.Labels(), 3)
	lut.SetEnabled(2, false)
	lbl, ok := lut.Get(2)
	require.True(t, ok)
	assert.False(t, lbl.Enabled)
}

func TestDisplayContextLocationTransaction(t *testing.T) {
	img := createTestImage(t, [4]int{10, 10, 10, 1}, func(x, y, z, v int) float64 { return 1 })
	dc := NewDisplayContext(NewOverlayList(img), nil)

	notifications := 0
	dc.Notifier().Listen("test", LocationProp, func(string) {
		notifications++
		// a listener echoing the location back must not loop
		dc.SetLocation(dc.Location())
		vox, _ := dc.VoxelLocation()
		dc.SetVoxelLocation(vox)
	})

	dc.SetLocation([3]float64{2.2, 3.7, 9.4})
	assert.Equal(t, 1, notifications)
	vox, ok := dc.VoxelLocation()
	assert.True(t, ok)
	assert.Equal(t, [3]int{2, 4, 9}, vox)

	dc.SetVoxelLocation([3]int{1, 1, 1})
	assert.Equal(t, 2, notifications)
	assert.Equal(t, [3]float64{1, 1, 1}, dc.Location())

	dc.SetLocation([3]float64{50, 0, 0})
	_, ok = dc.VoxelLocation()
	assert.False(t, ok)
}

func TestDisplayContextRetype(t *testing.T) {
	img := createTestImage(t, [4]int{4, 4, 4, 1}, func(x, y, z, v int) float64 { return float64(x) })
	dc := NewDisplayContext(NewOverlayList(img), nil)

	opts, err := dc.Opts(img)
	require.NoError(t, err)
	assert.IsType(t, &VolumeOpts{}, opts)

	dc.Display(img).OverlayType.Set(MaskType)
	opts, err = dc.Opts(img)
	require.NoError(t, err)
	assert.IsType(t, &MaskOpts{}, opts)
}

func TestDisplayContextBoundsFollowTransform(t *testing.T) {
	img := createTestImage(t, [4]int{4, 4, 4, 1}, func(x, y, z, v int) float64 { return 1 })
	list := NewOverlayList(img)
	dc := NewDisplayContext(list, nil)
	assert.Equal(t, [3]float64{3.5, 3.5, 3.5}, dc.Bounds().Hi)

	opts, err := dc.Opts(img)
	require.NoError(t, err)
	vo := opts.(*VolumeOpts)
	vo.CustomXform.Set(affine.ScaleOffset([3]float64{2, 2, 2}, [3]float64{}))
	vo.Transform.Set(CustomTransform)
	assert.Equal(t, [3]float64{7, 7, 7}, dc.Bounds().Hi)

	list.Remove(img)
	assert.True(t, dc.Bounds().Empty())
}

func TestChildContextSharing(t *testing.T) {
	img := createTestImage(t, [4]int{4, 4, 4, 1}, func(x, y, z, v int) float64 { return 1 })
	list := NewOverlayList(img)
	master := NewDisplayContext(list, nil)
	child := NewDisplayContext(list, master)

	assert.True(t, child.Synced(img))
	assert.Same(t, master.Display(img), child.Display(img))

	child.SetSynced(img, false)
	assert.False(t, child.Synced(img))
	assert.NotSame(t, master.Display(img), child.Display(img))
}

func TestValidOverlayTypes(t *testing.T) {
	vec := createTestImage(t, [4]int{2, 2, 2, 3}, func(x, y, z, v int) float64 { return 1 })
	assert.Contains(t, ValidOverlayTypes(vec), LineVectorType)
	assert.Equal(t, RGBVectorType, DefaultOverlayType(vec))

	sh := createTestImage(t, [4]int{2, 2, 2, 45}, func(x, y, z, v int) float64 { return 1 })
	assert.Contains(t, ValidOverlayTypes(sh), SHType)
	order, ok := SHOrderForVolumes(45)
	assert.True(t, ok)
	assert.Equal(t, 8, order)
}

func TestSelection(t *testing.T) {
	s := NewSelection([3]int{4, 4, 4})
	fired := 0
	s.Notifier().Listen("test", SelectionProp, func(string) { fired++ })

	s.SetBlock([3]int{-1, 1, 1}, [3]int{1, 2, 9}, true)
	assert.Equal(t, 2*2*3, s.Count())
	assert.True(t, s.Selected([3]int{0, 1, 3}))
	assert.False(t, s.Selected([3]int{2, 1, 1}))
	assert.False(t, s.Selected([3]int{9, 9, 9}))

	lo, hi, ok := s.Dirty()
	assert.True(t, ok)
	assert.Equal(t, [3]int{0, 1, 1}, lo)
	assert.Equal(t, [3]int{1, 2, 3}, hi)
	_, _, ok = s.Dirty()
	assert.False(t, ok)

	s.Clear()
	assert.Zero(t, s.Count())
	assert.Equal(t, 2, fired)
}
