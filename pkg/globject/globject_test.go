package globject

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

type fixture struct {
	rec   *gl.Recorder
	reg   *resources.Registry
	queue *idle.Queue
	ctx   *models.DisplayContext
	list  *models.OverlayList
}

func newFixture(overlays ...models.Overlay) *fixture {
	list := models.NewOverlayList(overlays...)
	return &fixture{
		rec:   gl.NewRecorder(gl.Caps{FloatTextures: true}),
		reg:   resources.NewRegistry(),
		queue: idle.NewQueue(),
		list:  list,
		ctx:   models.NewDisplayContext(list, nil),
	}
}

func (f *fixture) env(canvas uint64) *Env {
	return &Env{
		Backend:  f.rec,
		Registry: f.reg,
		Queue:    f.queue,
		Probe:    texdata.NewFloatProbe(func(int) bool { return true }),
		Context:  f.ctx,
		View:     NewView(),
		CanvasID: canvas,
	}
}

func testImage(t *testing.T, name string, shape [4]int, fn func(x, y, z, v int) float64) *models.Image {
	t.Helper()
	data := make([]float64, shape[0]*shape[1]*shape[2]*shape[3])
	for v := 0; v < shape[3]; v++ {
		for z := 0; z < shape[2]; z++ {
			for y := 0; y < shape[1]; y++ {
				for x := 0; x < shape[0]; x++ {
					data[v*shape[0]*shape[1]*shape[2]+z*shape[0]*shape[1]+y*shape[0]+x] = fn(x, y, z, v)
				}
			}
		}
	}
	img, err := models.NewImage(name, shape, [3]float64{1, 1, 1}, models.Float32, data, nil)
	require.NoError(t, err)
	return img
}

func rampImage(t *testing.T) *models.Image {
	return testImage(t, "ramp", [4]int{4, 4, 4, 1}, func(x, y, z, _ int) float64 { return float64(x + y + z) })
}

func cube(t *testing.T) *models.Mesh {
	t.Helper()
	verts := [][3]float64{
		{0, 0, 0}, {4, 0, 0}, {4, 4, 0}, {0, 4, 0},
		{0, 0, 4}, {4, 0, 4}, {4, 4, 4}, {0, 4, 4},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {2, 3, 7}, {2, 7, 6},
		{1, 2, 6}, {1, 6, 5}, {0, 4, 7}, {0, 7, 3},
	}
	m, err := models.NewMesh("cube", verts, faces)
	require.NoError(t, err)
	return m
}

func draw2D(t *testing.T, obj GLObject, zpos float64, axes Axes) {
	t.Helper()
	require.NoError(t, obj.PreDraw())
	require.NoError(t, obj.Draw2D(zpos, axes, nil, nil))
	require.NoError(t, obj.PostDraw())
}

func TestChangeKindsCoverEveryType(t *testing.T) {
	for _, otype := range []models.OverlayType{
		models.VolumeType, models.MaskType, models.LabelType, models.RGBVectorType,
		models.LineVectorType, models.TensorType, models.SHType, models.MeshType,
		models.MIPType, models.RGBType,
	} {
		kinds := ChangeKinds(otype)
		assert.NotEmpty(t, kinds, otype.String())
		for prop, kind := range kinds {
			got, ok := Classify(otype, prop)
			assert.True(t, ok)
			assert.Equal(t, kind, got)
		}
	}

	k, ok := Classify(models.VolumeType, models.DisplayRangeProp)
	require.True(t, ok)
	assert.Equal(t, ShaderUpdate, k)
	k, _ = Classify(models.VolumeType, models.CmapProp)
	assert.Equal(t, TextureRefresh, k)
	k, _ = Classify(models.LineVectorType, models.DirectedProp)
	assert.Equal(t, GeometryRefresh, k)
	k, _ = Classify(models.MeshType, models.RefImageProp)
	assert.Equal(t, GeometryRefresh, k)
	_, ok = Classify(models.VolumeType, "noSuchProp")
	assert.False(t, ok)

	// returned tables are copies
	ChangeKinds(models.VolumeType)[models.DisplayRangeProp] = GeometryRefresh
	k, _ = Classify(models.VolumeType, models.DisplayRangeProp)
	assert.Equal(t, ShaderUpdate, k)
}

func TestVolumeReadyAfterIdle(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()

	assert.IsType(t, &Volume{}, obj)
	assert.False(t, obj.Ready())
	f.queue.Flush(10)
	assert.True(t, obj.Ready())
	assert.True(t, Supports3D(obj))
}

func TestNoDrawOutsideDepthRange(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)

	axes := ZAxes(2)
	draw2D(t, obj, 100, axes)
	draw2D(t, obj, -100, axes)
	assert.Empty(t, f.rec.Draws())

	draw2D(t, obj, 1.5, axes)
	require.Len(t, f.rec.Draws(), 1)
	assert.Equal(t, gl.Triangles, f.rec.Draws()[0].Prim)
	assert.Equal(t, 6, f.rec.Draws()[0].Vertices)
}

func TestVolumeDrawAllIsOneCall(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)

	offset := mgl32.Translate3D(10, 0, 0)
	require.NoError(t, obj.PreDraw())
	require.NoError(t, obj.DrawAll(ZAxes(2), []float64{0.5, 1.5, 2.5, 99}, []*mgl32.Mat4{nil, &offset, nil, nil}))
	require.NoError(t, obj.PostDraw())

	require.Len(t, f.rec.Draws(), 1)
	d := f.rec.Draws()[0]
	assert.Equal(t, 18, d.Vertices)

	// the second slice is shifted by its transform
	var maxX float32
	for i := 6 * 3; i < 12*3; i += 3 {
		maxX = max(maxX, d.Data.Vertices[i])
	}
	assert.Greater(t, maxX, float32(10))
}

func TestSharedTextureAcrossCanvases(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	a, err := New(f.env(1), img)
	require.NoError(t, err)
	b, err := New(f.env(2), img)
	require.NoError(t, err)
	f.queue.Flush(10)

	key := a.(*Volume).data.key
	assert.Equal(t, key, b.(*Volume).data.key)
	assert.Equal(t, 2, f.reg.RefCount(key))

	a.Destroy()
	assert.Equal(t, 1, f.reg.RefCount(key))
	assert.True(t, b.Ready())

	b.Destroy()
	assert.Equal(t, 0, f.reg.Len())
	assert.Equal(t, 0, f.rec.LiveTextures())
	assert.Equal(t, 0, f.rec.LivePrograms())
}

func TestTextureRefreshSwapsSharedTexture(t *testing.T) {
	img := testImage(t, "4d", [4]int{3, 3, 3, 2}, func(x, _, _, v int) float64 { return float64(x * (v + 1)) })
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)

	vol := obj.(*Volume)
	old := vol.data.key
	var updates int
	obj.Notifier().Listen("test", UpdatedProp, func(string) { updates++ })

	vol.vopts.Volume.Set(1)
	assert.NotEqual(t, old, vol.data.key)
	assert.False(t, f.reg.Exists(old))
	assert.Positive(t, updates)
	f.queue.Flush(10)
	assert.True(t, obj.Ready())
}

func TestDestroyIsIdempotent(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	obj.Destroy()
	obj.Destroy()
	assert.True(t, obj.Destroyed())
	assert.False(t, obj.Ready())
	assert.Equal(t, 0, f.reg.Len())

	// option changes after destroy are ignored
	f.ctx.Display(img).Alpha.Set(50)
}

func TestConstructionError(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	f.rec.FailPrograms[fmt.Sprintf("volume_ramp_%d_volume", lastObject+1)] = errors.New("no GLSL")

	obj, err := New(f.env(1), img)
	assert.Nil(t, obj)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ramp", ce.Overlay)
	assert.Equal(t, models.VolumeType, ce.Type)
	assert.Equal(t, 0, f.reg.Len())
	assert.Equal(t, 0, f.rec.LivePrograms())
	assert.Equal(t, 0, f.rec.LiveTextures())
}

func TestMaskAndLabel(t *testing.T) {
	img := testImage(t, "labels", [4]int{4, 4, 4, 1}, func(x, _, _, _ int) float64 { return float64(x % 3) })
	f := newFixture(img)
	disp := f.ctx.Display(img)

	disp.OverlayType.Set(models.LabelType)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	f.queue.Flush(10)
	require.True(t, obj.Ready())

	lbl := obj.(*Label)
	val, _, ok := lbl.LabelAt([3]float64{2, 1, 1})
	require.True(t, ok)
	assert.Equal(t, 2, val)
	_, _, ok = lbl.LabelAt([3]float64{20, 1, 1})
	assert.False(t, ok)
	assert.False(t, Supports3D(obj))
	draw2D(t, obj, 1, ZAxes(0))
	assert.Len(t, f.rec.Draws(), 1)
	obj.Destroy()

	disp.OverlayType.Set(models.MaskType)
	obj, err = New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)
	assert.IsType(t, &Mask{}, obj)
	draw2D(t, obj, 1, ZAxes(1))
	assert.Len(t, f.rec.Draws(), 2)
}

func vectorImage(t *testing.T) *models.Image {
	return testImage(t, "vec", [4]int{3, 3, 3, 3}, func(_, _, _, v int) float64 {
		if v == 0 {
			return 1
		}
		return 0
	})
}

func TestRGBVectorColours(t *testing.T) {
	img := vectorImage(t)
	f := newFixture(img)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	require.IsType(t, &RGBVector{}, obj)
	f.queue.Flush(10)
	require.True(t, obj.Ready())

	v := obj.(*RGBVector)
	v.vopts.SuppressX.Set(true)
	draw2D(t, obj, 1, ZAxes(2))
	require.Len(t, f.rec.Draws(), 1)

	u, ok := f.rec.Uniform(v.prog.ID(), "suppress")
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, u)
	u, _ = f.rec.Uniform(v.prog.ID(), "colours")
	// suppressed channels become white by default
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, u.(mgl32.Mat3).Col(0))
}

func TestChannelColoursBlackAndTransparent(t *testing.T) {
	cols := [3]models.Colour{models.RGB(1, 0, 0), models.RGB(0, 1, 0), models.RGB(0, 0, 1)}
	m, flags, transparent := channelColours(cols, [3]bool{false, true, false}, models.SuppressBlack, 0.5, 0.5)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.Col(1))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Col(0))
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, flags)
	assert.False(t, transparent)

	_, _, transparent = channelColours(cols, [3]bool{}, models.SuppressTransparent, 0.5, 0.5)
	assert.True(t, transparent)
}

func TestLineVectorGeometryCache(t *testing.T) {
	img := vectorImage(t)
	f := newFixture(img)
	f.ctx.Display(img).OverlayType.Set(models.LineVectorType)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)

	l := obj.(*LineVector)
	assert.Equal(t, 1, l.generated)
	assert.False(t, l.refresh())

	draw2D(t, obj, 1, ZAxes(2))
	require.Len(t, f.rec.Draws(), 1)
	// 9 voxels in the slice, two triangles each
	assert.Equal(t, 9*6, f.rec.Draws()[0].Vertices)
	assert.Equal(t, 1, l.generated)

	// unit vectors along x, centred on the voxel
	s := l.segs[img.Index(1, 1, 1, 0)]
	assert.InDelta(t, 0.5, s.start[0], 1e-6)
	assert.InDelta(t, 1.5, s.end[0], 1e-6)

	l.lopts.Directed.Set(true)
	assert.Equal(t, 2, l.generated)
	s = l.segs[img.Index(1, 1, 1, 0)]
	assert.InDelta(t, 1, s.start[0], 1e-6)

	l.lopts.LengthScale.Set(200)
	assert.Equal(t, 3, l.generated)
	l.lopts.XColour.Set(models.RGB(1, 1, 0))
	assert.Equal(t, 3, l.generated)

	regenerates := func(name string, change func(), want int) {
		key := l.key
		change()
		assert.Equal(t, want, l.generated, name)
		assert.NotEqual(t, key, l.key, name)
		assert.False(t, l.refresh(), name)
	}
	regenerates("orientFlip", func() { l.lopts.OrientFlip.Set(true) }, 4)
	regenerates("unitLength", func() { l.lopts.UnitLength.Set(false) }, 5)

	// a custom transform only applies once selected
	l.iopts.CustomXform.Set(affine.ScaleOffset([3]float64{2, 2, 2}, [3]float64{}))
	assert.Equal(t, 5, l.generated)
	regenerates("transform", func() { l.iopts.Transform.Set(models.CustomTransform) }, 6)
}

func segmentLength(s segment) float64 {
	var d float64
	for ax := range s.start {
		d += float64((s.end[ax] - s.start[ax]) * (s.end[ax] - s.start[ax]))
	}
	return math.Sqrt(d)
}

func TestLineVectorUnitLengthAnisotropic(t *testing.T) {
	shape := [4]int{3, 3, 3, 3}
	data := make([]float64, 3*27)
	// x vectors in the first slice, z vectors elsewhere
	for i := 0; i < 27; i++ {
		if i < 9 {
			data[i] = 2
		} else {
			data[2*27+i] = 5
		}
	}
	img, err := models.NewImage("aniso", shape, [3]float64{1, 1, 3}, models.Float32, data, nil)
	require.NoError(t, err)

	f := newFixture(img)
	f.ctx.Display(img).OverlayType.Set(models.LineVectorType)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	l := obj.(*LineVector)
	l.iopts.Transform.Set(models.PixdimTransform)
	require.True(t, l.lopts.UnitLength.Get())

	// one minimum pixdim along either axis
	zs := l.segs[img.Index(1, 1, 1, 0)]
	assert.InDelta(t, 1, segmentLength(zs), 1e-6)
	assert.InDelta(t, zs.start[0], zs.end[0], 1e-6)
	assert.InDelta(t, 3, (zs.start[2]+zs.end[2])/2, 1e-6)
	xs := l.segs[img.Index(1, 1, 0, 0)]
	assert.InDelta(t, 1, segmentLength(xs), 1e-6)

	l.lopts.UnitLength.Set(false)
	zs = l.segs[img.Index(1, 1, 1, 0)]
	assert.InDelta(t, 15, segmentLength(zs), 1e-5)
}

func TestLineColourTransparentSuppression(t *testing.T) {
	cols := [3]models.Colour{models.RGB(1, 0, 0), models.RGB(0, 1, 0), models.RGB(0, 0, 1)}
	m, flags, transparent := channelColours(cols, [3]bool{true, false, false}, models.SuppressTransparent, 0.5, 0.5)
	c := lineColour([3]float32{-1, 0, 0}, m, flags, transparent)
	assert.Equal(t, float32(0), c[3])
	c = lineColour([3]float32{0, 1, 0}, m, flags, transparent)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, c)
}

func TestTensorInstancedDraw(t *testing.T) {
	shape := [4]int{3, 3, 3, 3}
	vec := func(ax int) *models.Image {
		return testImage(t, fmt.Sprintf("v%d", ax), shape, func(_, _, _, v int) float64 {
			if v == ax {
				return 1
			}
			return 0
		})
	}
	val := func(s float64) *models.Image {
		return testImage(t, "l", [4]int{3, 3, 3, 1}, func(x, _, _, _ int) float64 { return s * float64(x+1) })
	}
	tensor, err := models.NewTensorImage("dti", vec(0), vec(1), vec(2), val(3), val(2), val(1))
	require.NoError(t, err)

	f := newFixture(tensor)
	obj, err := New(f.env(1), tensor)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)
	require.True(t, obj.Ready())
	assert.False(t, Supports3D(obj))

	tobj := obj.(*Tensor)
	assert.InDelta(t, 9, tobj.eigValMax(), 1e-9)
	draw2D(t, obj, 1, ZAxes(2))
	require.Len(t, f.rec.Draws(), 1)
	d := f.rec.Draws()[0]
	assert.Equal(t, 9, d.Instances)
	assert.True(t, d.Enabled[gl.DepthTest])
	assert.Len(t, tobj.glyph.indices, d.Vertices)

	tobj.topts.TensorResolution.Set(5)
	assert.Equal(t, 25, tobj.glyph.nverts)
	assert.Equal(t, 6, f.reg.Len())
}

func TestSHBasisOrderZero(t *testing.T) {
	_, angles, _ := routines.UnitSphere(4)
	b := SHBasis(0, angles)
	r, c := b.Dims()
	assert.Equal(t, len(angles), r)
	assert.Equal(t, 1, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1/(2*math.Sqrt(math.Pi)), b.At(i, 0), 1e-12)
	}
	_, c = SHBasis(4, angles).Dims()
	assert.Equal(t, 15, c)
	assert.Equal(t, 45, SHCoefficients(8))
}

func TestSHRadii(t *testing.T) {
	// a constant FOD everywhere except x == 0, which is zero
	img := testImage(t, "fod", [4]int{3, 3, 3, 6}, func(x, _, _, v int) float64 {
		if v == 0 && x > 0 {
			return 2 * math.Sqrt(math.Pi)
		}
		return 0
	})
	f := newFixture(img)
	f.ctx.Display(img).OverlayType.Set(models.SHType)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()

	s := obj.(*SH)
	voxels := [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 2, 2}, {5, 0, 0}}
	kept, radii := s.Radii(voxels)
	assert.Equal(t, [][3]int{{1, 0, 0}, {2, 2, 2}}, kept)
	require.Len(t, radii, 2*s.glyph.nverts)
	for _, r := range radii {
		assert.InDelta(t, 1, r, 1e-9)
	}

	s.sopts.Normalise.Set(true)
	_, radii = s.Radii(voxels)
	for _, r := range radii {
		assert.InDelta(t, 0.5, r, 1e-9)
	}

	draw2D(t, obj, 1, ZAxes(2))
	require.Len(t, f.rec.Draws(), 1)
	d := f.rec.Draws()[0]
	assert.Equal(t, 6, d.Instances)
	assert.Equal(t, 1, d.Data.TexComps)
}

func TestMeshCrossSectionUsesStencil(t *testing.T) {
	m := cube(t)
	f := newFixture(m)
	obj, err := New(f.env(1), m)
	require.NoError(t, err)
	defer obj.Destroy()
	require.True(t, obj.Ready())
	assert.True(t, Supports3D(obj))

	draw2D(t, obj, 2, ZAxes(2))
	require.Len(t, f.rec.Draws(), 3)
	assert.Equal(t, 3, f.rec.CallCount("StencilOp"))
	assert.True(t, f.rec.Draws()[0].Enabled[gl.StencilTest])
	assert.True(t, f.rec.Draws()[2].Enabled[gl.StencilTest])
	assert.Equal(t, 6, f.rec.Draws()[2].Vertices)

	draw2D(t, obj, 10, ZAxes(2))
	assert.Len(t, f.rec.Draws(), 3)
}

func TestMeshOutline(t *testing.T) {
	m := cube(t)
	f := newFixture(m)
	obj, err := New(f.env(1), m)
	require.NoError(t, err)
	defer obj.Destroy()

	mesh := obj.(*Mesh)
	mesh.mopts.Outline.Set(true)
	draw2D(t, obj, 2, ZAxes(2))
	require.Len(t, f.rec.Draws(), 1)
	// the four side faces are each cut by two triangles
	assert.Equal(t, 8*6, f.rec.Draws()[0].Vertices)
	assert.Equal(t, 0, f.rec.CallCount("StencilOp"))
}

func TestMeshVertexDataLength(t *testing.T) {
	m := cube(t)
	require.NoError(t, m.AddVertexData("thickness", [][]float64{{0, 1, 2, 3, 4, 5, 6, 7}}))
	// bypasses the length check of AddVertexData
	m.VertexData["short"] = [][]float64{{1, 2}}

	f := newFixture(m)
	obj, err := New(f.env(1), m)
	require.NoError(t, err)
	defer obj.Destroy()
	mesh := obj.(*Mesh)
	mesh.mopts.Outline.Set(true)

	mesh.mopts.VertexData.Set("thickness")
	require.Len(t, mesh.data, 8)

	mesh.mopts.VertexData.Set("short")
	assert.Error(t, mesh.refreshData())
	assert.Nil(t, mesh.data)
	assert.NotPanics(t, func() { draw2D(t, obj, 2, ZAxes(2)) })
	require.Len(t, f.rec.Draws(), 1)
	assert.Nil(t, f.rec.Draws()[0].Data.Colours)
}

func TestMeshNearestVertex(t *testing.T) {
	m := cube(t)
	f := newFixture(m)
	obj, err := New(f.env(1), m)
	require.NoError(t, err)
	defer obj.Destroy()

	idx, p, ok := obj.(*Mesh).NearestVertex([3]float64{3.6, 3.9, 0.2})
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, [3]float64{4, 4, 0}, p)
}

func TestMeshDraw3D(t *testing.T) {
	m := cube(t)
	f := newFixture(m)
	obj, err := New(f.env(1), m)
	require.NoError(t, err)
	defer obj.Destroy()

	d3, ok := obj.(Drawer3D)
	require.True(t, ok)
	require.NoError(t, obj.PreDraw())
	require.NoError(t, d3.Draw3D(nil, nil))
	require.NoError(t, obj.PostDraw())
	require.Len(t, f.rec.Draws(), 1)
	assert.True(t, f.rec.Draws()[0].Enabled[gl.DepthTest])
	assert.Equal(t, 36, f.rec.Draws()[0].Vertices)
}

func TestRGBUsesFourChannels(t *testing.T) {
	img := testImage(t, "rgba", [4]int{2, 2, 2, 4}, func(_, _, _, v int) float64 { return float64(v) / 4 })
	f := newFixture(img)
	f.ctx.Display(img).OverlayType.Set(models.RGBType)
	obj, err := New(f.env(1), img)
	require.NoError(t, err)
	defer obj.Destroy()
	f.queue.Flush(10)

	r := obj.(*RGB)
	assert.Equal(t, 4, r.nvals())
	draw2D(t, obj, 0.5, ZAxes(2))
	u, ok := f.rec.Uniform(r.prog.ID(), "useAlpha")
	require.True(t, ok)
	assert.Equal(t, true, u)
}
