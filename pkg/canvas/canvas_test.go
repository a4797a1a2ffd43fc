package canvas

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/globject"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

type fixture struct {
	rec   *gl.Recorder
	reg   *resources.Registry
	queue *idle.Queue
	list  *models.OverlayList
	ctx   *models.DisplayContext
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

func (f *fixture) env() Env {
	return f.envFor(f.ctx)
}

func (f *fixture) envFor(ctx *models.DisplayContext) Env {
	return Env{
		Backend:  f.rec,
		Registry: f.reg,
		Queue:    f.queue,
		Probe:    texdata.NewFloatProbe(func(int) bool { return true }),
		Context:  ctx,
	}
}

// programDraws returns the draws issued with the named program. GLObject
// programs are matched by the shader name at the end of their name.
func (f *fixture) programDraws(name string) []gl.DrawCall {
	var out []gl.DrawCall
	for _, d := range f.rec.Draws() {
		if matchProgram(f.rec.ProgramName(d.Program), name) {
			out = append(out, d)
		}
	}
	return out
}

func matchProgram(program, name string) bool {
	return program == name || (!strings.HasPrefix(program, "annotations_") && strings.HasSuffix(program, "_"+name))
}

// programOrder returns the program names of every draw, in order.
func (f *fixture) programOrder() []string {
	var out []string
	for _, d := range f.rec.Draws() {
		out = append(out, f.rec.ProgramName(d.Program))
	}
	return out
}

func rampImage(t *testing.T) *models.Image {
	t.Helper()
	shape := [4]int{4, 4, 4, 1}
	data := make([]float64, 64)
	for i := range data {
		data[i] = float64(i % 7)
	}
	img, err := models.NewImage("ramp", shape, [3]float64{1, 1, 1}, models.Float32, data, nil)
	require.NoError(t, err)
	return img
}

func cube(t *testing.T) *models.Mesh {
	t.Helper()
	verts := [][3]float64{
		{0, 0, 0}, {3, 0, 0}, {3, 3, 0}, {0, 3, 0},
		{0, 0, 3}, {3, 0, 3}, {3, 3, 3}, {0, 3, 3},
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

func newSlice(t *testing.T, f *fixture, opts Options) *SliceCanvas {
	t.Helper()
	c, err := NewSliceCanvas(f.env(), 2, opts)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func TestCreationDeferredUntilInitialise(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())

	assert.Equal(t, Uninitialised, c.State())
	f.queue.Flush(10)
	_, ok := c.Object(img)
	assert.False(t, ok)
	assert.True(t, c.Pending(img))
	assert.ErrorIs(t, c.Draw(), ErrNotReady)

	require.NoError(t, c.Initialise(100, 100))
	assert.Equal(t, Ready, c.State())
	f.queue.Flush(10)
	obj, ok := c.Object(img)
	require.True(t, ok)
	assert.IsType(t, &globject.Volume{}, obj)
	assert.False(t, c.Pending(img))
}

func TestOverlayRemovedBeforeCreation(t *testing.T) {
	img := rampImage(t)
	f := newFixture()
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))

	f.list.Append(img)
	f.list.Remove(img)
	f.queue.Flush(10)
	_, ok := c.Object(img)
	assert.False(t, ok)
	assert.NoError(t, c.Failed(img))
}

func TestOverlayRemovalDestroysObject(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	obj, ok := c.Object(img)
	require.True(t, ok)

	f.list.Remove(img)
	assert.True(t, obj.Destroyed())
	_, ok = c.Object(img)
	assert.False(t, ok)
}

func TestRetypeRecreatesObject(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	old, ok := c.Object(img)
	require.True(t, ok)

	f.ctx.Display(img).OverlayType.Set(models.MaskType)
	assert.True(t, old.Destroyed())
	f.queue.Flush(10)
	obj, ok := c.Object(img)
	require.True(t, ok)
	assert.IsType(t, &globject.Mask{}, obj)
}

func TestConstructionFailureIsContained(t *testing.T) {
	img := rampImage(t)
	m := cube(t)
	f := newFixture(img, m)
	f.rec.FailPrograms = map[string]error{"*_volume": errors.New("no compiler")}
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)

	var ce *globject.ConstructionError
	require.ErrorAs(t, c.Failed(img), &ce)
	_, ok := c.Object(img)
	assert.False(t, ok)
	_, ok = c.Object(m)
	assert.True(t, ok)

	f.ctx.SetLocation([3]float64{1, 1, 1.5})
	require.NoError(t, c.Draw())
	assert.NotEmpty(t, f.programDraws("mesh"))
}

func TestSliceDrawSkipsOutOfRangeDepth(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)

	f.ctx.SetLocation([3]float64{1, 1, 1})
	require.NoError(t, c.Draw())
	require.Len(t, f.programDraws("volume"), 1)

	f.rec.Reset()
	f.ctx.SetLocation([3]float64{1, 1, 50})
	require.NoError(t, c.Draw())
	assert.Empty(t, f.programDraws("volume"))
}

func TestDisabledOverlayNotDrawn(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	f.ctx.SetLocation([3]float64{1, 1, 1})

	f.ctx.Display(img).Enabled.Set(false)
	require.NoError(t, c.Draw())
	assert.Empty(t, f.programDraws("volume"))
}

func TestSliceCursorAndAnnotations(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	f.ctx.SetLocation([3]float64{1, 2, 1})

	require.NoError(t, c.Draw())
	flat := f.programDraws("annotations_flat")
	require.Len(t, flat, 2)
	for _, d := range flat {
		assert.Equal(t, gl.Lines, d.Prim)
	}
	_, fixed, _ := c.Annotations().Len()
	assert.Equal(t, 2, fixed)

	f.rec.Reset()
	c.SetCursor(false, models.RGB(1, 0, 0))
	require.NoError(t, c.Draw())
	assert.Empty(t, f.programDraws("annotations_flat"))
}

func TestSliceZoomPanRoundTrip(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c := newSlice(t, f, DefaultOptions())
	require.NoError(t, c.Initialise(200, 100))

	xmin, xmax, ymin, ymax := c.Region()
	assert.InDelta(t, 8.0, xmax-xmin, 1e-9)
	assert.InDelta(t, 4.0, ymax-ymin, 1e-9)

	c.SetZoom(200)
	xmin, xmax, _, _ = c.Region()
	assert.InDelta(t, 4.0, xmax-xmin, 1e-9)

	c.Pan(100, 0)
	xmin, xmax, _, _ = c.Region()
	assert.InDelta(t, 3.5, (xmin+xmax)/2, 1e-9)

	p := c.CanvasToWorld(37, 61)
	x, y := c.WorldToCanvas(p)
	assert.InDelta(t, 37.0, x, 1e-9)
	assert.InDelta(t, 61.0, y, 1e-9)

	c.ResetPan()
	xmin, xmax, _, _ = c.Region()
	assert.InDelta(t, 1.5, (xmin+xmax)/2, 1e-9)
}

func TestDestroyReleasesEverything(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	c, err := NewSliceCanvas(f.env(), 2, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)
	f.ctx.SetLocation([3]float64{1, 1, 1})
	require.NoError(t, c.Draw())

	c.Destroy()
	c.Destroy()
	assert.Equal(t, Destroyed, c.State())
	assert.ErrorIs(t, c.Draw(), ErrDestroyed)
	assert.ErrorIs(t, c.Initialise(10, 10), ErrDestroyed)
	assert.Equal(t, 0, f.reg.Len())
	assert.Equal(t, 0, f.rec.LivePrograms())
	assert.Equal(t, 0, f.rec.LiveFramebuffers())

	// listeners are gone
	f.list.Remove(img)
	f.queue.Flush(10)
}

func TestInvalidRenderMode(t *testing.T) {
	f := newFixture()
	opts := DefaultOptions()
	opts.RenderMode = "sideways"
	_, err := NewSliceCanvas(f.env(), 2, opts)
	assert.ErrorIs(t, err, ErrUnknownRenderMode)

	c := newSlice(t, f, DefaultOptions())
	assert.ErrorIs(t, c.SetRenderMode("sideways"), ErrUnknownRenderMode)
	assert.Equal(t, Onscreen, c.RenderMode())
	_, err = NewSliceCanvas(f.env(), 3, DefaultOptions())
	assert.Error(t, err)
}
