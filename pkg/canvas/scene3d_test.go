package canvas

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

func newScene(t *testing.T, f *fixture, opts Scene3DOptions) *Scene3DCanvas {
	t.Helper()
	c := NewScene3DCanvas(f.env(), opts)
	t.Cleanup(c.Destroy)
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	return c
}

// overlayOrder returns the shader of each GLObject draw, in order.
func overlayOrder(f *fixture) []string {
	var out []string
	for _, name := range f.programOrder() {
		if strings.HasPrefix(name, "annotations_") {
			continue
		}
		out = append(out, name[strings.LastIndex(name, "_")+1:])
	}
	return out
}

func TestSceneOcclusionDrawsMeshesFirst(t *testing.T) {
	img := rampImage(t)
	m := cube(t)
	f := newFixture(img, m)
	opts := DefaultScene3DOptions()
	opts.ShowCursor = false
	c := newScene(t, f, opts)

	require.NoError(t, c.Draw())
	assert.Equal(t, []string{"mesh", "volume3d"}, overlayOrder(f))
	for _, d := range f.rec.Draws() {
		assert.True(t, d.Enabled[gl.DepthTest])
	}
	assert.Equal(t, 1, f.rec.CallCount("Clear"))
}

func TestSceneWithoutOcclusionDrawsVolumesFirst(t *testing.T) {
	img := rampImage(t)
	img2 := rampImage(t)
	m := cube(t)
	f := newFixture(m, img, img2)
	opts := DefaultScene3DOptions()
	opts.ShowCursor = false
	c := newScene(t, f, opts)
	c.SetOcclusion(false)

	require.NoError(t, c.Draw())
	assert.Equal(t, []string{"volume3d", "volume3d", "mesh"}, overlayOrder(f))
	// one full clear, then the depth buffer before each volume
	assert.Equal(t, 3, f.rec.CallCount("Clear"))
	for _, call := range f.rec.Calls() {
		if call.Op == "Clear" && call.Args[0] == gl.ClearDepth {
			return
		}
	}
	t.Fatal("depth buffer was never cleared on its own")
}

func TestSceneSkipsObjectsWithout3D(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	f.ctx.Display(img).OverlayType.Set(models.MaskType)
	opts := DefaultScene3DOptions()
	opts.ShowCursor = false
	c := newScene(t, f, opts)
	_, ok := c.Object(img)
	require.True(t, ok)

	require.NoError(t, c.Draw())
	assert.Empty(t, overlayOrder(f))
}

func transform(m mgl32.Mat4, p [3]float64) mgl32.Vec3 {
	return m.Mul4x1(mgl32.Vec4{float32(p[0]), float32(p[1]), float32(p[2]), 1}).Vec3()
}

func TestSceneViewMatrix(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newScene(t, f, DefaultScene3DOptions())

	b := f.ctx.Bounds()
	centre := b.Centre()
	r := radius(b)

	_, mv := c.ViewMatrices()
	got := transform(mv, centre)
	assert.InDelta(t, 0, got[0], 1e-4)
	assert.InDelta(t, 0, got[1], 1e-4)
	assert.InDelta(t, -3*r, got[2], 1e-4)

	// rotation is about the scene centre, not the camera
	c.SetRotation(90, 0)
	_, mv = c.ViewMatrices()
	got = transform(mv, centre)
	assert.InDelta(t, 0, got[0], 1e-4)
	assert.InDelta(t, -3*r, got[2], 1e-4)
	right := centre
	right[0]++
	got = transform(mv, right)
	assert.InDelta(t, 0, got[0], 1e-4)
	assert.InDelta(t, -3*r-1, got[2], 1e-4)

	// zoom scales about the view axis, then the offset moves the scene
	opts := c.Options()
	opts.Azimuth = 0
	opts.Zoom = 200
	opts.Offset = [2]float64{1, -2}
	c.SetOptions(opts)
	_, mv = c.ViewMatrices()
	got = transform(mv, right)
	assert.InDelta(t, 3, got[0], 1e-4)
	assert.InDelta(t, -2, got[1], 1e-4)

	require.NoError(t, c.Draw())
	assert.InDelta(t, 0, c.View().CameraDir[0], 1e-6)
	assert.InDelta(t, -1, c.View().CameraDir[2], 1e-6)
}

func TestSceneHighlightsNearestVertex(t *testing.T) {
	m := cube(t)
	f := newFixture(m)
	c := newScene(t, f, DefaultScene3DOptions())
	f.ctx.SetLocation([3]float64{2.8, 2.9, 0.1})

	require.NoError(t, c.Draw())
	var points []gl.DrawCall
	for _, d := range f.programDraws("annotations_flat") {
		if d.Prim == gl.Points {
			points = append(points, d)
		}
	}
	require.Len(t, points, 1)
	assert.Equal(t, []float32{3, 3, 0}, points[0].Data.Vertices)
}
